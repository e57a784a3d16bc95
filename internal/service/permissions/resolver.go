// Package permissions implements the folder permission model: a fixed
// decision procedure for direct checks and a filter rewrite that pushes the
// same rules into repository queries.
package permissions

import (
	"fmt"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	apperrors "antbox-backend/pkg/errors"
)

// Resolver decides folder access and rewrites query filters so results only
// contain nodes the caller may read.
type Resolver struct{}

// NewResolver creates a permission resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Decide checks whether the principal holds the capability on the folder.
// The buckets are consulted in a fixed order; anonymous callers that fall
// through get Unauthorized, authenticated callers get Forbidden.
func (r *Resolver) Decide(auth domain.AuthContext, folder *domain.Node, c domain.Capability) error {
	p := auth.Principal
	if p.IsAdmin() {
		return nil
	}

	perms := folder.Permissions
	if perms == nil {
		perms = &domain.Permissions{}
	}

	if domain.Has(perms.Anonymous, c) {
		return nil
	}
	if p.IsAnonymous() {
		return apperrors.NewUnauthorized(fmt.Sprintf("anonymous caller lacks %s on %q", c, folder.UUID))
	}
	if p.Email == folder.Owner {
		return nil
	}
	if domain.Has(perms.Authenticated, c) {
		return nil
	}
	if folder.Group != "" && p.InGroup(folder.Group) && domain.Has(perms.Group, c) {
		return nil
	}
	for group, caps := range perms.Advanced {
		if p.InGroup(group) && domain.Has(caps, c) {
			return nil
		}
	}
	return apperrors.NewForbidden(fmt.Sprintf("caller lacks %s on %q", c, folder.UUID))
}

// RewriteFilters expands a caller's filter groups into groups that also
// enforce read visibility. Admin filters pass through untouched.
//
// Each caller conjunction is multiplied by the permission paths open to the
// principal. A path is expressed twice: once against folders directly, and
// once against non-folders through their parent with the @ operator, so the
// expanded query still covers both shapes of node.
func (r *Resolver) RewriteFilters(auth domain.AuthContext, c domain.Capability, groups filters.Groups) filters.Groups {
	if auth.Principal.IsAdmin() {
		return groups.Normalized()
	}

	paths := r.permissionPaths(auth.Principal, c)
	out := make(filters.Groups, 0, len(groups)*len(paths)*2)
	for _, conjunction := range groups.Normalized() {
		for _, path := range paths {
			folderCase := conjunction.With(
				filters.Filter{Field: "mimetype", Operator: filters.OpEqual, Value: domain.FolderMimetype},
			).With(path...)

			parentPredicates := make([]filters.Filter, 0, len(path))
			for _, predicate := range path {
				parentPredicates = append(parentPredicates, filters.Filter{
					Field:    filters.ParentPrefix + predicate.Field,
					Operator: predicate.Operator,
					Value:    predicate.Value,
				})
			}
			nonFolderCase := conjunction.With(
				filters.Filter{Field: "mimetype", Operator: filters.OpNotEqual, Value: domain.FolderMimetype},
			).With(parentPredicates...)

			out = append(out, folderCase, nonFolderCase)
		}
	}
	return out
}

// permissionPaths enumerates the conjunctions under which the principal
// holds the capability on a folder. Anonymous callers only have the
// anonymous bucket.
func (r *Resolver) permissionPaths(p domain.Principal, c domain.Capability) []filters.Filters {
	capability := string(c)

	paths := []filters.Filters{
		{{Field: "permissions.anonymous", Operator: filters.OpContains, Value: capability}},
	}
	if p.IsAnonymous() {
		return paths
	}

	paths = append(paths,
		filters.Filters{{Field: "owner", Operator: filters.OpEqual, Value: p.Email}},
		filters.Filters{{Field: "permissions.authenticated", Operator: filters.OpContains, Value: capability}},
	)
	for _, group := range p.Groups {
		paths = append(paths,
			filters.Filters{
				{Field: "group", Operator: filters.OpEqual, Value: group},
				{Field: "permissions.group", Operator: filters.OpContains, Value: capability},
			},
			filters.Filters{
				{Field: "permissions.advanced." + group, Operator: filters.OpContains, Value: capability},
			},
		)
	}
	return paths
}
