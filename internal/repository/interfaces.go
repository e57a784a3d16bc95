// Package repository defines the data access interfaces for the Antbox
// persistence layer: the node repository, the binary store, the typed
// configuration collections, and the optional semantic plane (vector
// database plus embedding/OCR models).
//
// The node service depends only on these interfaces; in-memory
// implementations back the tests while DynamoDB, S3 and SQLite back
// deployments.
package repository

import (
	"context"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
)

// NodeRepository persists the uuid → node mapping and evaluates filters.
//
// Contract: Add fails when uuid or fid collide within the tenant; Update
// replaces the full record atomically; Filter paginates deterministically,
// ordered by (title ASC, uuid ASC). Implementations must be safe under
// concurrent callers and serialize per-uuid operations.
type NodeRepository interface {
	Add(ctx context.Context, tenant string, node *domain.Node) error
	Update(ctx context.Context, tenant string, node *domain.Node) error
	Delete(ctx context.Context, tenant, uuid string) error
	GetByUUID(ctx context.Context, tenant, uuid string) (*domain.Node, error)
	GetByFID(ctx context.Context, tenant, fid string) (*domain.Node, error)
	Filter(ctx context.Context, tenant string, groups filters.Groups, page Pagination) (*NodePage, error)
}

// BinaryMetadata is the advisory tuple handed to the binary store; backends
// may use it to route an object to a path, the store is otherwise opaque.
type BinaryMetadata struct {
	Title    string
	Parent   string
	Mimetype string
}

// BinaryStore maps uuid → opaque byte stream. Writing the same uuid replaces.
type BinaryStore interface {
	Write(ctx context.Context, tenant, uuid string, content []byte, meta BinaryMetadata) error
	Read(ctx context.Context, tenant, uuid string) ([]byte, error)
	Delete(ctx context.Context, tenant, uuid string) error
}

// Identifiable is the key constraint for configuration collections.
type Identifiable interface {
	ID() string
}

// Collection is one typed collection of the configuration repository.
// Built-in items are merged into List results; Save and Delete on a
// reserved uuid fail with BadRequest.
type Collection[T Identifiable] interface {
	Save(ctx context.Context, tenant string, item T) error
	Get(ctx context.Context, tenant, uuid string) (T, error)
	List(ctx context.Context, tenant string) ([]T, error)
	Delete(ctx context.Context, tenant, uuid string) error
}

// ConfigurationRepository groups the typed collections the core needs.
type ConfigurationRepository interface {
	Aspects() Collection[domain.Aspect]
	WorkflowDefinitions() Collection[domain.WorkflowDefinition]
	WorkflowInstances() Collection[domain.WorkflowInstance]
}

// VectorEntry is one embedded node in the vector database.
type VectorEntry struct {
	NodeUUID string
	Vector   []float32
	Metadata map[string]string
}

// VectorMatch is one k-nearest search hit; Score is normalized to [0,1].
type VectorMatch struct {
	NodeUUID string
	Score    float64
}

// VectorDB is the optional k-nearest index keyed by node uuid.
type VectorDB interface {
	Upsert(ctx context.Context, tenant string, entry VectorEntry) error
	DeleteByNodeUUID(ctx context.Context, tenant, uuid string) error
	Search(ctx context.Context, tenant string, vector []float32, topK int) ([]VectorMatch, error)
}

// EmbeddingModel turns texts into vectors.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OCRModel extracts text from a binary file.
type OCRModel interface {
	OCR(ctx context.Context, file domain.File) (string, error)
}
