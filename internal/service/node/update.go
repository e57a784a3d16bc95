package node

import (
	"context"
	"fmt"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

// Update applies client metadata onto an existing node and publishes a
// NodeUpdated event carrying the field diff. Api keys and built-ins cannot
// be updated; readonly aspect properties keep their prior values.
func (s *service) Update(ctx context.Context, auth domain.AuthContext, uuid string, meta domain.NodeMetadata) (node *domain.Node, err error) {
	start := s.now()
	defer func() { s.observe("update", start, err) }()

	before, err := s.lookupNode(ctx, auth.Tenant, uuid)
	if err != nil {
		return nil, err
	}
	if before.IsBuiltin() {
		return nil, apperrors.NewBadRequest("built-in nodes cannot be updated")
	}
	if before.IsAPIKey() {
		return nil, apperrors.NewBadRequest("api keys cannot be updated")
	}

	target, err := s.permissionTarget(ctx, auth.Tenant, before)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Decide(auth, target, domain.CapabilityWrite); err != nil {
		return nil, err
	}

	after := before.Clone()
	applyMetadata(after, meta)
	after.ModifiedTime = s.now()

	if meta.Parent != "" && meta.Parent != before.Parent {
		newParent, err := s.parentFolder(ctx, auth.Tenant, meta.Parent)
		if err != nil {
			return nil, err
		}
		if err := s.resolver.Decide(auth, newParent, domain.CapabilityWrite); err != nil {
			return nil, err
		}
		after.Parent = newParent.UUID
	}

	if after.IsFeature() && after.Feature != nil {
		if err := after.Feature.Validate(); err != nil {
			return nil, err
		}
	}

	if after.Aspectable() || len(after.Aspects) > 0 {
		if err := s.aspects.Validate(ctx, auth, after); err != nil {
			return nil, err
		}
	}
	s.preserveReadonly(ctx, auth.Tenant, before, after)

	after.Fulltext = s.computeFulltext(ctx, auth.Tenant, after)

	parent, err := s.parentFolder(ctx, auth.Tenant, after.Parent)
	if err != nil {
		return nil, err
	}
	if !filters.Satisfies(parent.Filters, after.Resolver()) {
		return nil, apperrors.NewBadRequest(
			fmt.Sprintf("node does not satisfy the filters of folder %q", parent.UUID))
	}

	// Tightening a folder's filters is atomic: every existing child must
	// conform or the folder stays unchanged.
	if after.IsFolder() && meta.Filters != nil {
		if err := s.revalidateChildren(ctx, auth.Tenant, after); err != nil {
			return nil, err
		}
	}

	if err := s.nodes.Update(ctx, auth.Tenant, after); err != nil {
		return nil, err
	}
	s.mirrorAspect(ctx, auth.Tenant, after)

	oldValues, newValues := domain.DiffNodes(before, after)
	s.publish(ctx, domain.NewNodeUpdatedEvent(auth, after.UUID, oldValues, newValues))
	return after.WithoutSecret(), nil
}

// UpdateFile replaces a node's binary. The replacement must keep the node's
// mimetype.
func (s *service) UpdateFile(ctx context.Context, auth domain.AuthContext, uuid string, file domain.File) (node *domain.Node, err error) {
	start := s.now()
	defer func() { s.observe("updateFile", start, err) }()

	before, err := s.lookupNode(ctx, auth.Tenant, uuid)
	if err != nil {
		return nil, err
	}
	if !before.HasBinary() {
		return nil, domain.NewNodeFileNotFound(uuid)
	}
	if file.Mimetype != before.Mimetype {
		return nil, apperrors.NewBadRequest(
			fmt.Sprintf("mimetype %q does not match the node's %q", file.Mimetype, before.Mimetype))
	}

	target, err := s.permissionTarget(ctx, auth.Tenant, before)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Decide(auth, target, domain.CapabilityWrite); err != nil {
		return nil, err
	}

	err = s.binaries.Write(ctx, auth.Tenant, before.UUID, file.Content, repository.BinaryMetadata{
		Title:    before.Title,
		Parent:   before.Parent,
		Mimetype: before.Mimetype,
	})
	if err != nil {
		return nil, err
	}

	after := before.Clone()
	after.Size = file.Size()
	after.ModifiedTime = s.now()
	if err := s.nodes.Update(ctx, auth.Tenant, after); err != nil {
		return nil, err
	}

	oldValues, newValues := domain.DiffNodes(before, after)
	s.publish(ctx, domain.NewNodeUpdatedEvent(auth, after.UUID, oldValues, newValues))
	return after.WithoutSecret(), nil
}

// applyMetadata merges client metadata into the clone. Zero values mean
// "keep"; derived fields are recomputed by the caller.
func applyMetadata(node *domain.Node, meta domain.NodeMetadata) {
	if meta.Title != "" {
		node.Title = meta.Title
	}
	if meta.Description != "" {
		node.Description = meta.Description
	}
	if meta.Owner != "" {
		node.Owner = meta.Owner
	}
	if meta.Group != "" {
		node.Group = meta.Group
	}
	if meta.Tags != nil {
		node.Tags = append([]string(nil), meta.Tags...)
	}
	if meta.Aspects != nil {
		node.Aspects = append([]string(nil), meta.Aspects...)
	}
	if meta.Properties != nil {
		node.Properties = cloneProperties(meta.Properties)
	}
	if meta.Permissions != nil {
		node.Permissions = meta.Permissions.Clone()
	}
	if meta.Filters != nil {
		node.Filters = append(filters.Filters(nil), meta.Filters...)
	}
	if meta.SmartFilters != nil {
		node.SmartFilters = meta.SmartFilters.Clone()
	}
	if meta.Aggregations != nil {
		node.Aggregations = append([]domain.Aggregation(nil), meta.Aggregations...)
	}
	if meta.AspectProperties != nil {
		node.AspectProperties = append([]domain.AspectProperty(nil), meta.AspectProperties...)
	}
	if meta.Feature != nil {
		node.Feature = meta.Feature
	}
	if meta.Agent != nil {
		node.Agent = meta.Agent
	}
}

// preserveReadonly silently restores readonly aspect property values from
// the stored node. Readonly properties are only settable at creation.
func (s *service) preserveReadonly(ctx context.Context, tenant string, before, after *domain.Node) {
	for _, aspectUUID := range after.Aspects {
		aspect, err := s.config.Aspects().Get(ctx, tenant, aspectUUID)
		if err != nil {
			continue
		}
		for _, prop := range aspect.Properties {
			if !prop.Readonly {
				continue
			}
			key := domain.PropertyKey(aspect.UUID, prop.Name)
			prior, had := before.Properties[key]
			if !had {
				delete(after.Properties, key)
				continue
			}
			if after.Properties == nil {
				after.Properties = map[string]any{}
			}
			after.Properties[key] = prior
		}
	}
}

// revalidateChildren checks every direct child against the folder's new
// filters, failing on the first non-conforming child.
func (s *service) revalidateChildren(ctx context.Context, tenant string, folder *domain.Node) error {
	children, err := s.allChildren(ctx, tenant, folder.UUID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if !filters.Satisfies(folder.Filters, child.Resolver()) {
			return apperrors.NewBadRequest(
				fmt.Sprintf("child %q does not satisfy the new folder filters", child.UUID))
		}
	}
	return nil
}
