// Package listeners contains the event bus subscribers that react to node
// lifecycle events: the embedding indexer, the parent timestamp updater and
// the feature automation dispatcher.
package listeners

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/infrastructure/events"
	"antbox-backend/internal/repository"
	"antbox-backend/pkg/observability"
)

// indexJob is one unit of background embedding work.
type indexJob struct {
	tenant string
	uuid   string
	text   string
	delete bool
}

// EmbeddingIndexer keeps the vector database in sync with node content.
// Event handling only enqueues; embedding happens on a background worker so
// slow model calls never block the publishing operation.
type EmbeddingIndexer struct {
	vectors  repository.VectorDB
	embedder repository.EmbeddingModel
	logger   *zap.Logger
	metrics  *observability.Collector

	jobs chan indexJob
	wg   sync.WaitGroup
	once sync.Once
}

// NewEmbeddingIndexer creates the indexer with a bounded job queue.
func NewEmbeddingIndexer(vectors repository.VectorDB, embedder repository.EmbeddingModel, logger *zap.Logger, metrics *observability.Collector) *EmbeddingIndexer {
	return &EmbeddingIndexer{
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
		metrics:  metrics,
		jobs:     make(chan indexJob, 256),
	}
}

// Register subscribes the indexer to the node lifecycle events and starts
// the background worker.
func (i *EmbeddingIndexer) Register(bus *events.Bus) error {
	for _, id := range []string{domain.EventNodeCreated, domain.EventNodeUpdated, domain.EventNodeDeleted} {
		handler := events.HandlerFunc{HandlerName: "embedding-indexer", Fn: i.handle}
		if err := bus.Subscribe(id, handler); err != nil {
			return err
		}
	}
	i.Start(context.Background())
	return nil
}

// Start launches the background worker once.
func (i *EmbeddingIndexer) Start(ctx context.Context) {
	i.once.Do(func() {
		i.wg.Add(1)
		go i.worker(ctx)
	})
}

// Stop drains the queue and waits for the worker to exit.
func (i *EmbeddingIndexer) Stop() {
	close(i.jobs)
	i.wg.Wait()
}

// handle enqueues work for the event; a full queue drops the job rather
// than blocking the publisher.
func (i *EmbeddingIndexer) handle(ctx context.Context, event domain.DomainEvent) error {
	var job indexJob
	switch e := event.(type) {
	case *domain.NodeCreatedEvent:
		if !indexable(e.Payload) {
			return nil
		}
		job = indexJob{tenant: e.Tenant(), uuid: e.Payload.UUID, text: indexText(e.Payload)}
	case *domain.NodeUpdatedEvent:
		text, ok := textFromDiff(e.NewValues)
		if !ok {
			return nil
		}
		job = indexJob{tenant: e.Tenant(), uuid: e.AggregateID(), text: text}
	case *domain.NodeDeletedEvent:
		job = indexJob{tenant: e.Tenant(), uuid: e.AggregateID(), delete: true}
	default:
		return nil
	}

	select {
	case i.jobs <- job:
	default:
		i.logger.Warn("embedding queue full, dropping job",
			zap.String("uuid", job.uuid),
		)
	}
	return nil
}

func (i *EmbeddingIndexer) worker(ctx context.Context) {
	defer i.wg.Done()
	for job := range i.jobs {
		if err := i.process(ctx, job); err != nil {
			if i.metrics != nil {
				i.metrics.EmbeddingRequests.WithLabelValues("error").Inc()
			}
			i.logger.Warn("embedding index update failed",
				zap.String("uuid", job.uuid),
				zap.Error(err),
			)
			continue
		}
		if i.metrics != nil {
			i.metrics.EmbeddingRequests.WithLabelValues("ok").Inc()
		}
	}
}

func (i *EmbeddingIndexer) process(ctx context.Context, job indexJob) error {
	if job.delete {
		return i.vectors.DeleteByNodeUUID(ctx, job.tenant, job.uuid)
	}

	vectors, err := i.embedder.Embed(ctx, []string{job.text})
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	return i.vectors.Upsert(ctx, job.tenant, repository.VectorEntry{
		NodeUUID: job.uuid,
		Vector:   vectors[0],
	})
}

// indexable excludes definition nodes whose content carries no meaning for
// semantic search.
func indexable(node *domain.Node) bool {
	return node.IsFile() || node.IsMetaNode() || node.IsFolder()
}

func indexText(node *domain.Node) string {
	parts := []string{node.Title, node.Description, node.Fulltext}
	joined := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			joined = append(joined, p)
		}
	}
	return strings.Join(joined, " ")
}

// textFromDiff rebuilds index text from an update diff. Only diffs touching
// the searchable fields trigger reindexing.
func textFromDiff(newValues map[string]any) (string, bool) {
	var parts []string
	touched := false
	for _, field := range []string{"title", "description", "fulltext"} {
		if v, ok := newValues[field]; ok {
			touched = true
			if s, ok := v.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
	}
	if !touched {
		return "", false
	}
	return strings.Join(parts, " "), true
}
