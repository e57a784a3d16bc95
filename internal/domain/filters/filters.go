// Package filters implements the filter AST shared by folders, smart folders,
// aspects and the find operation, plus its evaluation engine.
//
// A 1-D filter is a (field, operator, value) triple. A conjunction (Filters)
// ANDs its triples together; Groups ORs conjunctions. The wire form follows
// the JSON grammar: a triple serializes as a three element array.
package filters

import (
	"encoding/json"
	"fmt"
)

// Operator enumerates the supported filter operators.
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpIn             Operator = "in"
	OpContains       Operator = "contains"
	OpSemantic       Operator = "~="
	OpMatch          Operator = "match"
	OpStartsWith     Operator = "startsWith"
	OpEndsWith       Operator = "endsWith"
)

// ContentField is the virtual field targeted by semantic search.
const ContentField = ":content"

// ParentPrefix marks a predicate about the node's parent folder.
const ParentPrefix = "@"

// Filter is a single (field, operator, value) predicate.
type Filter struct {
	Field    string
	Operator Operator
	Value    any
}

// Filters is a conjunction: every filter must be satisfied.
type Filters []Filter

// Groups is a disjunction of conjunctions: at least one group must be satisfied.
type Groups []Filters

// NewFilter is a convenience constructor used throughout the services.
func NewFilter(field string, op Operator, value any) Filter {
	return Filter{Field: field, Operator: op, Value: value}
}

// IsParentPredicate reports whether the filter targets the parent folder.
func (f Filter) IsParentPredicate() bool {
	return len(f.Field) > 0 && f.Field[0] == '@'
}

// ParentField strips the @ prefix from a parent predicate field.
func (f Filter) ParentField() string {
	if f.IsParentPredicate() {
		return f.Field[1:]
	}
	return f.Field
}

// IsSemantic reports whether the filter is a semantic content match.
func (f Filter) IsSemantic() bool {
	return f.Field == ContentField && f.Operator == OpSemantic
}

// MarshalJSON serializes the filter as a [field, op, value] triple.
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Field, string(f.Operator), f.Value})
}

// UnmarshalJSON parses a [field, op, value] triple.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("filter must have exactly 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &f.Field); err != nil {
		return fmt.Errorf("filter field must be a string: %w", err)
	}
	var op string
	if err := json.Unmarshal(raw[1], &op); err != nil {
		return fmt.Errorf("filter operator must be a string: %w", err)
	}
	f.Operator = Operator(op)
	var value any
	if err := json.Unmarshal(raw[2], &value); err != nil {
		return err
	}
	f.Value = value
	return nil
}

// Parse decodes the external filter grammar: a bare [field, op, value]
// triple, a flat list of triples forming one conjunction, or nested groups
// switching to OR-of-ANDs with bare triples promoted to single-filter
// groups.
func Parse(raw string) (Groups, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("filters must be a JSON array: %w", err)
	}
	if len(elems) == 0 {
		return Groups{}, nil
	}

	// A bare triple starts with the field string rather than a nested array.
	var field string
	if err := json.Unmarshal(elems[0], &field); err == nil {
		var single Filter
		if err := json.Unmarshal([]byte(raw), &single); err != nil {
			return nil, err
		}
		return Groups{Filters{single}}, nil
	}

	nested := false
	for _, e := range elems {
		isGroup, err := isFilterGroup(e)
		if err != nil {
			return nil, err
		}
		if isGroup {
			nested = true
			break
		}
	}

	if !nested {
		var group Filters
		if err := json.Unmarshal([]byte(raw), &group); err != nil {
			return nil, err
		}
		return Groups{group}, nil
	}

	groups := make(Groups, 0, len(elems))
	for _, e := range elems {
		isGroup, err := isFilterGroup(e)
		if err != nil {
			return nil, err
		}
		if isGroup {
			var group Filters
			if err := json.Unmarshal(e, &group); err != nil {
				return nil, err
			}
			groups = append(groups, group)
			continue
		}
		var single Filter
		if err := json.Unmarshal(e, &single); err != nil {
			return nil, err
		}
		groups = append(groups, Filters{single})
	}
	return groups, nil
}

// isFilterGroup distinguishes a nested group from a triple by inspecting the
// first element: a triple starts with a string field, a group with an array.
func isFilterGroup(raw json.RawMessage) (bool, error) {
	var inner []json.RawMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		return false, fmt.Errorf("filter entry must be an array: %w", err)
	}
	if len(inner) == 0 {
		return true, nil
	}
	var field string
	if err := json.Unmarshal(inner[0], &field); err == nil {
		return false, nil
	}
	return true, nil
}

// Normalized guarantees at least one conjunction so rewriting passes can
// expand an empty (match-all) query the same way as any other.
func (g Groups) Normalized() Groups {
	if len(g) == 0 {
		return Groups{Filters{}}
	}
	return g
}

// WithAll returns a copy of the groups with extra filters appended to every
// conjunction.
func (g Groups) WithAll(extra ...Filter) Groups {
	out := make(Groups, 0, len(g))
	for _, group := range g.Normalized() {
		combined := make(Filters, 0, len(group)+len(extra))
		combined = append(combined, group...)
		combined = append(combined, extra...)
		out = append(out, combined)
	}
	return out
}

// With returns a copy of the conjunction with extra filters appended.
func (f Filters) With(extra ...Filter) Filters {
	out := make(Filters, 0, len(f)+len(extra))
	out = append(out, f...)
	out = append(out, extra...)
	return out
}

// Clone performs a shallow copy of all groups and filters.
func (g Groups) Clone() Groups {
	out := make(Groups, len(g))
	for i, group := range g {
		out[i] = append(Filters(nil), group...)
	}
	return out
}
