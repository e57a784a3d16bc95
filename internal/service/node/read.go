package node

import (
	"context"
	"encoding/json"
	"sort"

	"antbox-backend/internal/domain"
	apperrors "antbox-backend/pkg/errors"
)

// Get retrieves a node by uuid or fid alias. The read permission is checked
// against the node's parent, or against the node itself for folders.
func (s *service) Get(ctx context.Context, auth domain.AuthContext, uuid string) (node *domain.Node, err error) {
	start := s.now()
	defer func() { s.observe("get", start, err) }()

	node, err = s.lookupNode(ctx, auth.Tenant, uuid)
	if err != nil {
		return nil, err
	}
	target, err := s.permissionTarget(ctx, auth.Tenant, node)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Decide(auth, target, domain.CapabilityRead); err != nil {
		return nil, err
	}
	return node.WithoutSecret(), nil
}

// List returns a folder's children, folders first and then by title. Smart
// folders are evaluated instead. Listing the root injects the virtual system
// folder; the users and groups system folders merge in the built-ins.
func (s *service) List(ctx context.Context, auth domain.AuthContext, parent string) (nodes []*domain.Node, err error) {
	start := s.now()
	defer func() { s.observe("list", start, err) }()

	if parent == "" {
		parent = domain.RootFolderUUID
	}

	folder, err := s.lookupNode(ctx, auth.Tenant, parent)
	if err != nil {
		return nil, err
	}
	if folder.IsSmartFolder() {
		result, err := s.Evaluate(ctx, auth, folder.UUID)
		if err != nil {
			return nil, err
		}
		return result.Nodes, nil
	}
	if !folder.IsFolder() {
		return nil, domain.NewFolderNotFound(parent)
	}
	if err := s.resolver.Decide(auth, folder, domain.CapabilityRead); err != nil {
		return nil, err
	}

	children, err := s.allChildren(ctx, auth.Tenant, folder.UUID)
	if err != nil {
		return nil, err
	}

	switch folder.UUID {
	case domain.RootFolderUUID:
		children = append(children, domain.SystemFolder())
	case domain.UsersFolderUUID:
		children = append(children, builtinUserNodes()...)
	case domain.GroupsFolderUUID:
		children = append(children, builtinGroupNodes()...)
	}

	sort.SliceStable(children, func(i, j int) bool {
		if children[i].IsFolder() != children[j].IsFolder() {
			return children[i].IsFolder()
		}
		return children[i].Title < children[j].Title
	})

	for i, child := range children {
		children[i] = child.WithoutSecret()
	}
	return children, nil
}

// Evaluate runs a smart folder's saved filters and computes its
// aggregations over the full result set.
func (s *service) Evaluate(ctx context.Context, auth domain.AuthContext, uuid string) (result *EvaluationResult, err error) {
	start := s.now()
	defer func() { s.observe("evaluate", start, err) }()

	folder, err := s.lookupNode(ctx, auth.Tenant, uuid)
	if err != nil {
		return nil, err
	}
	if !folder.IsSmartFolder() {
		return nil, domain.NewSmartFolderNotFound(uuid)
	}
	target, err := s.parentFolder(ctx, auth.Tenant, folder.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Decide(auth, target, domain.CapabilityRead); err != nil {
		return nil, err
	}

	nodes, _, err := s.executeAll(ctx, auth, folder.SmartFilters)
	if err != nil {
		return nil, err
	}

	aggregations := make([]domain.AggregationResult, 0, len(folder.Aggregations))
	for _, agg := range folder.Aggregations {
		computed, err := agg.Apply(nodes)
		if err != nil {
			return nil, err
		}
		aggregations = append(aggregations, computed)
	}
	return &EvaluationResult{Nodes: nodes, Aggregations: aggregations}, nil
}

// Breadcrumbs walks the parent chain upward, returning the path from the
// root down to the node.
func (s *service) Breadcrumbs(ctx context.Context, auth domain.AuthContext, uuid string) (crumbs []Breadcrumb, err error) {
	start := s.now()
	defer func() { s.observe("breadcrumbs", start, err) }()

	node, err := s.lookupNode(ctx, auth.Tenant, uuid)
	if err != nil {
		return nil, err
	}

	var path []Breadcrumb
	visited := map[string]bool{}
	current := node
	for {
		if current.UUID == domain.RootFolderUUID || visited[current.UUID] {
			break
		}
		visited[current.UUID] = true
		path = append(path, Breadcrumb{UUID: current.UUID, Title: current.Title})
		if current.Parent == "" {
			break
		}
		parent, err := s.lookupNode(ctx, auth.Tenant, current.Parent)
		if err != nil {
			break
		}
		current = parent
	}
	path = append(path, Breadcrumb{UUID: domain.RootFolderUUID, Title: "Root"})

	// Reverse so the root comes first.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Export returns a node as a downloadable file. Binary-backed nodes return
// their stream; definition nodes serialize to JSON. Reserved mimetypes remap
// on the way out.
func (s *service) Export(ctx context.Context, auth domain.AuthContext, uuid string) (file *domain.File, err error) {
	start := s.now()
	defer func() { s.observe("export", start, err) }()

	node, err := s.lookupNode(ctx, auth.Tenant, uuid)
	if err != nil {
		return nil, err
	}
	target, err := s.permissionTarget(ctx, auth.Tenant, node)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Decide(auth, target, domain.CapabilityExport); err != nil {
		return nil, err
	}

	var content []byte
	if node.HasBinary() {
		content, err = s.binaries.Read(ctx, auth.Tenant, node.UUID)
		if err != nil {
			return nil, err
		}
	} else {
		content, err = exportPayload(node)
		if err != nil {
			return nil, apperrors.Wrap(err, "serializing node for export")
		}
	}

	return &domain.File{
		Name:     node.Title,
		Mimetype: domain.ExportMimetype(node.Mimetype),
		Content:  content,
	}, nil
}

// GetAPIKeyWithSecret is the only read that discloses an api-key secret.
// Reserved to admins.
func (s *service) GetAPIKeyWithSecret(ctx context.Context, auth domain.AuthContext, uuid string) (node *domain.Node, err error) {
	start := s.now()
	defer func() { s.observe("getApiKeyWithSecret", start, err) }()

	if !auth.Principal.IsAdmin() {
		return nil, apperrors.NewForbidden("api-key secrets are reserved to admins")
	}
	node, err = s.lookupNode(ctx, auth.Tenant, uuid)
	if err != nil {
		return nil, err
	}
	if !node.IsAPIKey() {
		return nil, domain.NewAPIKeyNotFound(uuid)
	}
	return node, nil
}

// exportPayload serializes a definition node to its JSON export shape.
func exportPayload(node *domain.Node) ([]byte, error) {
	switch {
	case node.IsAspect():
		return json.MarshalIndent(domain.AspectFromNode(node), "", "  ")
	case node.IsSmartFolder():
		return json.MarshalIndent(map[string]any{
			"uuid":         node.UUID,
			"title":        node.Title,
			"filters":      node.SmartFilters,
			"aggregations": node.Aggregations,
		}, "", "  ")
	case node.IsAgent():
		return json.MarshalIndent(node.Agent, "", "  ")
	default:
		return json.MarshalIndent(node.WithoutSecret(), "", "  ")
	}
}

// builtinUserNodes synthesizes meta nodes for the reserved accounts so the
// users system folder lists them alongside stored entries.
func builtinUserNodes() []*domain.Node {
	users := domain.BuiltinUsers()
	out := make([]*domain.Node, 0, len(users))
	for _, u := range users {
		out = append(out, &domain.Node{
			UUID:     u.Email,
			FID:      domain.FIDFromTitle(u.Name),
			Title:    u.Name,
			Mimetype: domain.MetaNodeMimetype,
			Parent:   domain.UsersFolderUUID,
			Owner:    domain.RootUserEmail,
			Properties: map[string]any{
				"email":  u.Email,
				"groups": u.Groups,
			},
		})
	}
	return out
}

// builtinGroupNodes synthesizes meta nodes for the reserved groups.
func builtinGroupNodes() []*domain.Node {
	groups := domain.BuiltinGroups()
	out := make([]*domain.Node, 0, len(groups))
	for _, g := range groups {
		out = append(out, &domain.Node{
			UUID:     g.UUID,
			FID:      domain.FIDFromTitle(g.Title),
			Title:    g.Title,
			Mimetype: domain.MetaNodeMimetype,
			Parent:   domain.GroupsFolderUUID,
			Owner:    domain.RootUserEmail,
		})
	}
	return out
}
