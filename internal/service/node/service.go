// Package node implements the node service: the public contract over the
// node repository, binary store, configuration repository and event bus.
// All operations take the caller's auth context and enforce the folder
// permission model before touching storage.
package node

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/repository"
	"antbox-backend/internal/service/aspects"
	"antbox-backend/internal/service/permissions"
	"antbox-backend/pkg/observability"
)

// EventBus publishes domain events after successful writes.
type EventBus interface {
	Publish(ctx context.Context, event domain.DomainEvent) error
}

// FindRequest is the query shape of Find: either a parsed filter AST or a
// raw query string, plus pagination.
type FindRequest struct {
	Filters   filters.Groups `json:"filters,omitempty"`
	Query     string         `json:"query,omitempty"`
	PageSize  int            `json:"pageSize,omitempty"`
	PageToken int            `json:"pageToken,omitempty"`
}

// FindResult is one page of a find evaluation. Scores is set only when the
// query triggered semantic search.
type FindResult struct {
	Nodes     []*domain.Node     `json:"nodes"`
	PageSize  int                `json:"pageSize"`
	PageToken int                `json:"pageToken"`
	PageCount int                `json:"pageCount"`
	Scores    map[string]float64 `json:"scores,omitempty"`
}

// EvaluationResult is a smart folder evaluation: the matching nodes plus the
// folder's computed aggregations.
type EvaluationResult struct {
	Nodes        []*domain.Node             `json:"nodes"`
	Aggregations []domain.AggregationResult `json:"aggregations,omitempty"`
}

// Breadcrumb is one step of a node's ancestry path.
type Breadcrumb struct {
	UUID  string `json:"uuid"`
	Title string `json:"title"`
}

// Service is the public node service contract.
type Service interface {
	Create(ctx context.Context, auth domain.AuthContext, meta domain.NodeMetadata) (*domain.Node, error)
	CreateFile(ctx context.Context, auth domain.AuthContext, file domain.File, meta domain.NodeMetadata) (*domain.Node, error)
	Copy(ctx context.Context, auth domain.AuthContext, uuid, newParent string) (*domain.Node, error)
	Duplicate(ctx context.Context, auth domain.AuthContext, uuid string) (*domain.Node, error)
	Update(ctx context.Context, auth domain.AuthContext, uuid string, meta domain.NodeMetadata) (*domain.Node, error)
	UpdateFile(ctx context.Context, auth domain.AuthContext, uuid string, file domain.File) (*domain.Node, error)
	Delete(ctx context.Context, auth domain.AuthContext, uuid string) error
	Get(ctx context.Context, auth domain.AuthContext, uuid string) (*domain.Node, error)
	List(ctx context.Context, auth domain.AuthContext, parent string) ([]*domain.Node, error)
	Find(ctx context.Context, auth domain.AuthContext, req FindRequest) (*FindResult, error)
	Evaluate(ctx context.Context, auth domain.AuthContext, uuid string) (*EvaluationResult, error)
	Breadcrumbs(ctx context.Context, auth domain.AuthContext, uuid string) ([]Breadcrumb, error)
	Export(ctx context.Context, auth domain.AuthContext, uuid string) (*domain.File, error)
	GetAPIKeyWithSecret(ctx context.Context, auth domain.AuthContext, uuid string) (*domain.Node, error)
}

type service struct {
	nodes    repository.NodeRepository
	binaries repository.BinaryStore
	config   repository.ConfigurationRepository
	bus      EventBus
	resolver *permissions.Resolver

	// Optional semantic plane. When either is nil, semantic search degrades
	// to fulltext matching.
	vectors  repository.VectorDB
	embedder repository.EmbeddingModel

	aspects  *aspects.Validator
	validate *validator.Validate
	logger   *zap.Logger
	metrics  *observability.Collector
	now      func() time.Time
}

// Dependencies bundles everything the node service needs.
type Dependencies struct {
	Nodes    repository.NodeRepository
	Binaries repository.BinaryStore
	Config   repository.ConfigurationRepository
	Bus      EventBus
	Vectors  repository.VectorDB
	Embedder repository.EmbeddingModel
	Logger   *zap.Logger
	Metrics  *observability.Collector
}

// NewService wires a node service. The aspect validator is constructed here
// so its uuid reference checks go through this service's Get and honor the
// caller's permissions.
func NewService(deps Dependencies) Service {
	s := &service{
		nodes:    deps.Nodes,
		binaries: deps.Binaries,
		config:   deps.Config,
		bus:      deps.Bus,
		resolver: permissions.NewResolver(),
		vectors:  deps.Vectors,
		embedder: deps.Embedder,
		validate: validator.New(),
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.aspects = aspects.NewValidator(deps.Config.Aspects(), s.getForReference, deps.Logger)
	return s
}

// getForReference backs the aspect validator's uuid cross-checks.
func (s *service) getForReference(ctx context.Context, auth domain.AuthContext, uuid string) (*domain.Node, error) {
	return s.Get(ctx, auth, uuid)
}

// lookupNode resolves a uuid or fid alias to a stored or built-in node.
func (s *service) lookupNode(ctx context.Context, tenant, uuid string) (*domain.Node, error) {
	if domain.IsFID(uuid) {
		slug := domain.FIDToSlug(uuid)
		if builtin, ok := domain.BuiltinFolderByFID(slug); ok {
			return builtin, nil
		}
		return s.nodes.GetByFID(ctx, tenant, slug)
	}
	if builtin, ok := domain.BuiltinFolder(uuid); ok {
		return builtin, nil
	}
	return s.nodes.GetByUUID(ctx, tenant, uuid)
}

// parentFolder resolves a node's parent, which must exist and be a folder.
func (s *service) parentFolder(ctx context.Context, tenant, parent string) (*domain.Node, error) {
	if builtin, ok := domain.BuiltinFolder(parent); ok {
		return builtin, nil
	}
	folder, err := s.nodes.GetByUUID(ctx, tenant, parent)
	if err != nil {
		return nil, domain.NewFolderNotFound(parent)
	}
	if !folder.IsFolder() {
		return nil, domain.NewFolderNotFound(parent)
	}
	return folder, nil
}

// permissionTarget is the folder a capability check applies to: the node
// itself when it is a folder, its parent otherwise.
func (s *service) permissionTarget(ctx context.Context, tenant string, node *domain.Node) (*domain.Node, error) {
	if node.IsFolder() {
		return node, nil
	}
	return s.parentFolder(ctx, tenant, node.Parent)
}

// computeFulltext derives the search string from title, description, tags
// and the values of searchable aspect properties, folded and stripped of
// tokens too short to discriminate.
func (s *service) computeFulltext(ctx context.Context, tenant string, node *domain.Node) string {
	parts := []string{node.Title, node.Description}
	parts = append(parts, node.Tags...)

	for _, aspectUUID := range node.Aspects {
		aspect, err := s.config.Aspects().Get(ctx, tenant, aspectUUID)
		if err != nil {
			continue
		}
		for _, prop := range aspect.Properties {
			if !prop.Searchable {
				continue
			}
			value, ok := node.Properties[domain.PropertyKey(aspect.UUID, prop.Name)]
			if !ok {
				continue
			}
			if str, ok := value.(string); ok {
				parts = append(parts, str)
			}
		}
	}

	return strings.Join(filters.FoldTokens(strings.Join(parts, " ")), " ")
}

// allChildren pages through every direct child of a folder.
func (s *service) allChildren(ctx context.Context, tenant, parent string) ([]*domain.Node, error) {
	query := filters.Groups{{{Field: "parent", Operator: filters.OpEqual, Value: parent}}}
	var children []*domain.Node
	page := repository.All()
	for {
		result, err := s.nodes.Filter(ctx, tenant, query, page)
		if err != nil {
			return nil, err
		}
		children = append(children, result.Nodes...)
		if page.PageToken >= result.PageCount {
			return children, nil
		}
		page.PageToken++
	}
}

// publish sends an event; the bus isolates subscriber failures.
func (s *service) publish(ctx context.Context, event domain.DomainEvent) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("eventId", event.EventID()),
			zap.String("uuid", event.AggregateID()),
			zap.Error(err),
		)
	}
}

func (s *service) observe(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, start, err)
	}
}
