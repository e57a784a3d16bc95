package node

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

// Create builds and persists a node from client metadata and publishes
// NodeCreated. The parent must exist, be a folder and grant Write.
func (s *service) Create(ctx context.Context, auth domain.AuthContext, meta domain.NodeMetadata) (node *domain.Node, err error) {
	start := s.now()
	defer func() { s.observe("create", start, err) }()

	node, err = s.create(ctx, auth, meta, nil)
	return node, err
}

// CreateFile creates a file-like node. The binary is written before the
// record is appended; a failing append does not roll the binary back.
func (s *service) CreateFile(ctx context.Context, auth domain.AuthContext, file domain.File, meta domain.NodeMetadata) (node *domain.Node, err error) {
	start := s.now()
	defer func() { s.observe("createFile", start, err) }()

	if meta.Title == "" {
		meta.Title = file.Name
	}
	if meta.Mimetype == "" {
		meta.Mimetype = file.Mimetype
	}
	node, err = s.create(ctx, auth, meta, &file)
	return node, err
}

// create is the shared write path for Create, CreateFile and Copy.
func (s *service) create(ctx context.Context, auth domain.AuthContext, meta domain.NodeMetadata, file *domain.File) (*domain.Node, error) {
	if err := s.validate.Struct(meta); err != nil {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid node metadata: %v", err))
	}
	if meta.Parent == "" {
		return nil, apperrors.NewBadRequest("node metadata requires a parent")
	}
	if meta.UUID != "" && domain.IsBuiltinUUID(meta.UUID) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("uuid %q is reserved", meta.UUID))
	}

	parent, err := s.parentFolder(ctx, auth.Tenant, meta.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Decide(auth, parent, domain.CapabilityWrite); err != nil {
		return nil, err
	}

	node := domain.NewNodeFromMetadata(meta, s.now())
	if node.UUID == "" {
		node.UUID = domain.NewUUID()
	}
	if node.Owner == "" {
		node.Owner = auth.Principal.Email
	}
	if node.Group == "" {
		node.Group = parent.Group
	}
	if file != nil {
		node.Size = file.Size()
	}

	// New folders inherit the parent's permission buckets when the client
	// does not set them.
	if node.IsFolder() && node.Permissions == nil {
		if parent.Permissions != nil {
			node.Permissions = parent.Permissions.Clone()
		} else {
			node.Permissions = domain.DefaultPermissions()
		}
	}

	if node.IsFeature() {
		if node.Feature == nil {
			return nil, apperrors.NewBadRequest("feature node requires a feature configuration")
		}
		if err := node.Feature.Validate(); err != nil {
			return nil, err
		}
	}
	if node.IsAPIKey() && node.Secret == "" {
		node.Secret = newSecret()
	}

	if node.Aspectable() || len(node.Aspects) > 0 {
		if err := s.aspects.Validate(ctx, auth, node); err != nil {
			return nil, err
		}
	}

	node.Fulltext = s.computeFulltext(ctx, auth.Tenant, node)

	if !filters.Satisfies(parent.Filters, node.Resolver()) {
		return nil, apperrors.NewBadRequest(
			fmt.Sprintf("node does not satisfy the filters of folder %q", parent.UUID))
	}

	if err := s.assignFID(ctx, auth.Tenant, node); err != nil {
		return nil, err
	}

	if file != nil {
		err := s.binaries.Write(ctx, auth.Tenant, node.UUID, file.Content, repository.BinaryMetadata{
			Title:    node.Title,
			Parent:   node.Parent,
			Mimetype: node.Mimetype,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.nodes.Add(ctx, auth.Tenant, node); err != nil {
		return nil, err
	}
	s.mirrorAspect(ctx, auth.Tenant, node)

	s.publish(ctx, domain.NewNodeCreatedEvent(auth, node.WithoutSecret().Clone()))
	return node.WithoutSecret(), nil
}

// Copy clones a non-folder node under a new parent. The binary is duplicated
// when present and the title picks up a " 2" suffix.
func (s *service) Copy(ctx context.Context, auth domain.AuthContext, uuid, newParent string) (node *domain.Node, err error) {
	start := s.now()
	defer func() { s.observe("copy", start, err) }()

	source, err := s.Get(ctx, auth, uuid)
	if err != nil {
		return nil, err
	}
	if source.IsFolder() {
		return nil, apperrors.NewBadRequest("folders cannot be copied")
	}

	meta := metadataFromNode(source)
	meta.UUID = ""
	meta.FID = ""
	meta.Parent = newParent
	meta.Title = source.Title + " 2"
	meta.Secret = ""

	var file *domain.File
	if source.HasBinary() {
		content, err := s.binaries.Read(ctx, auth.Tenant, source.UUID)
		if err != nil {
			return nil, err
		}
		file = &domain.File{Name: meta.Title, Mimetype: source.Mimetype, Content: content}
	}
	node, err = s.create(ctx, auth, meta, file)
	return node, err
}

// Duplicate copies a node into its own parent.
func (s *service) Duplicate(ctx context.Context, auth domain.AuthContext, uuid string) (*domain.Node, error) {
	source, err := s.Get(ctx, auth, uuid)
	if err != nil {
		return nil, err
	}
	return s.Copy(ctx, auth, uuid, source.Parent)
}

// assignFID derives a fid from the title when absent, falling back to a
// suffixed slug on collision.
func (s *service) assignFID(ctx context.Context, tenant string, node *domain.Node) error {
	if node.FID == "" {
		node.FID = domain.FIDFromTitle(node.Title)
	}
	if node.FID == "" {
		node.FID = domain.UniqueFID("")
		return nil
	}
	if _, err := s.nodes.GetByFID(ctx, tenant, node.FID); err == nil {
		node.FID = domain.UniqueFID(node.FID)
	}
	return nil
}

// mirrorAspect keeps the configuration repository's aspect collection in
// sync with aspect nodes, so the validator sees schemas created through the
// node service.
func (s *service) mirrorAspect(ctx context.Context, tenant string, node *domain.Node) {
	if !node.IsAspect() {
		return
	}
	if err := s.config.Aspects().Save(ctx, tenant, domain.AspectFromNode(node)); err != nil {
		s.logger.Warn("aspect mirror save failed",
			zap.String("uuid", node.UUID),
			zap.Error(err),
		)
	}
}

// metadataFromNode rebuilds client metadata from a stored node, used by Copy.
func metadataFromNode(n *domain.Node) domain.NodeMetadata {
	return domain.NodeMetadata{
		UUID:             n.UUID,
		FID:              n.FID,
		Title:            n.Title,
		Description:      n.Description,
		Mimetype:         n.Mimetype,
		Parent:           n.Parent,
		Owner:            n.Owner,
		Group:            n.Group,
		Tags:             append([]string(nil), n.Tags...),
		Aspects:          append([]string(nil), n.Aspects...),
		Properties:       cloneProperties(n.Properties),
		Permissions:      n.Permissions.Clone(),
		Filters:          append(filters.Filters(nil), n.Filters...),
		SmartFilters:     n.SmartFilters.Clone(),
		Aggregations:     append([]domain.Aggregation(nil), n.Aggregations...),
		Secret:           n.Secret,
		AspectProperties: append([]domain.AspectProperty(nil), n.AspectProperties...),
		Feature:          n.Feature,
		Agent:            n.Agent,
	}
}

func cloneProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// newSecret issues an api-key secret. Secrets are opaque and only disclosed
// through GetAPIKeyWithSecret.
func newSecret() string {
	return strings.ReplaceAll(domain.NewUUID()+domain.NewUUID(), "-", "")
}
