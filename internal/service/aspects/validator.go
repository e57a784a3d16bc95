// Package aspects validates node metadata against the aspect schemas a node
// declares. Validation sanitizes unknown property keys, applies defaults,
// type-checks values and cross-checks uuid references.
package aspects

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

// NodeGetter resolves a uuid reference on behalf of the caller. The node
// service provides its own get here so reference checks honor the caller's
// permissions.
type NodeGetter func(ctx context.Context, auth domain.AuthContext, uuid string) (*domain.Node, error)

// Validator checks a node's properties against its declared aspects.
type Validator struct {
	aspects repository.Collection[domain.Aspect]
	getNode NodeGetter
	logger  *zap.Logger
}

// NewValidator creates an aspect validator backed by the configuration
// repository's aspect collection.
func NewValidator(aspects repository.Collection[domain.Aspect], getNode NodeGetter, logger *zap.Logger) *Validator {
	return &Validator{aspects: aspects, getNode: getNode, logger: logger}
}

// Validate sanitizes and checks node.Properties in place. It returns a
// ValidationErrors aggregate listing every failed property, or nil when the
// node conforms to all of its aspects.
func (v *Validator) Validate(ctx context.Context, auth domain.AuthContext, node *domain.Node) error {
	declared, missing := v.resolveAspects(ctx, auth.Tenant, node.Aspects)
	if len(missing) > 0 {
		errs := make([]apperrors.PropertyError, 0, len(missing))
		for _, uuid := range missing {
			errs = append(errs, apperrors.PropertyError{
				Property: "aspects",
				Message:  fmt.Sprintf("aspect %q not found", uuid),
			})
		}
		return apperrors.NewValidationErrors(errs)
	}

	node.Properties = v.sanitize(node.Properties, declared)

	var errs []apperrors.PropertyError
	for _, aspect := range declared {
		for _, prop := range aspect.Properties {
			key := domain.PropertyKey(aspect.UUID, prop.Name)
			value, present := node.Properties[key]

			if !present {
				if prop.Required {
					errs = append(errs, apperrors.PropertyError{
						Property: key,
						Message:  "required property is missing",
					})
				}
				continue
			}

			if err := checkType(value, prop.Type, prop.ArrayType); err != nil {
				errs = append(errs, apperrors.PropertyError{Property: key, Message: err.Error()})
				continue
			}

			if refErrs := v.checkReferences(ctx, auth, key, value, prop); len(refErrs) > 0 {
				errs = append(errs, refErrs...)
			}
		}
	}
	return apperrors.NewValidationErrors(errs)
}

// resolveAspects loads the declared aspect schemas, splitting resolved from
// missing uuids.
func (v *Validator) resolveAspects(ctx context.Context, tenant string, uuids []string) ([]domain.Aspect, []string) {
	resolved := make([]domain.Aspect, 0, len(uuids))
	var missing []string
	for _, uuid := range uuids {
		aspect, err := v.aspects.Get(ctx, tenant, uuid)
		if err != nil {
			missing = append(missing, uuid)
			continue
		}
		resolved = append(resolved, aspect)
	}
	return resolved, missing
}

// sanitize rebuilds the property map: declared aspect properties keep their
// value or pick up the schema default. Everything else is silently dropped,
// undeclared namespaces and un-namespaced keys alike, so the stored map only
// ever holds declared aspect:property keys.
func (v *Validator) sanitize(properties map[string]any, declared []domain.Aspect) map[string]any {
	sanitized := make(map[string]any)
	for _, aspect := range declared {
		for _, prop := range aspect.Properties {
			key := domain.PropertyKey(aspect.UUID, prop.Name)
			if value, ok := properties[key]; ok {
				sanitized[key] = value
				continue
			}
			if prop.Default != nil {
				sanitized[key] = prop.Default
			}
		}
	}
	return sanitized
}

// checkReferences validates uuid-typed values, directly or through an array
// element type. Every referenced node must exist and be visible to the
// caller; with validation filters declared, it must also satisfy them.
func (v *Validator) checkReferences(ctx context.Context, auth domain.AuthContext, key string, value any, prop domain.AspectProperty) []apperrors.PropertyError {
	var refs []string
	switch {
	case prop.Type == domain.PropertyUUID:
		if s, ok := value.(string); ok {
			refs = []string{s}
		}
	case prop.Type == domain.PropertyArray && prop.ArrayType == domain.PropertyUUID:
		for _, elem := range asSlice(value) {
			if s, ok := elem.(string); ok {
				refs = append(refs, s)
			}
		}
	default:
		return nil
	}

	var errs []apperrors.PropertyError
	for _, ref := range refs {
		target, err := v.getNode(ctx, auth, ref)
		if err != nil {
			errs = append(errs, apperrors.PropertyError{
				Property: key,
				Message:  fmt.Sprintf("referenced node %q not found", ref),
			})
			continue
		}
		if len(prop.ValidationFilters) == 0 {
			continue
		}
		if !filters.Satisfies(prop.ValidationFilters, target.Resolver()) {
			errs = append(errs, apperrors.PropertyError{
				Property: key,
				Message:  fmt.Sprintf("referenced node %q does not satisfy the validation filters", ref),
			})
		}
	}
	return errs
}

// checkType verifies a value against a declared property type.
func checkType(value any, typ, arrayType domain.PropertyType) error {
	switch typ {
	case domain.PropertyString, domain.PropertyUUID:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected %s, got %T", typ, value)
		}
	case domain.PropertyNumber:
		if !isNumber(value) {
			return fmt.Errorf("expected number, got %T", value)
		}
	case domain.PropertyBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case domain.PropertyDate:
		s, ok := value.(string)
		if !ok || !isDate(s) {
			return fmt.Errorf("expected an ISO date, got %v", value)
		}
	case domain.PropertyObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case domain.PropertyArray:
		elems := asSlice(value)
		if elems == nil {
			return fmt.Errorf("expected array, got %T", value)
		}
		if arrayType == "" {
			return nil
		}
		for i, elem := range elems {
			if err := checkType(elem, arrayType, ""); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func isDate(s string) bool {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func asSlice(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}
