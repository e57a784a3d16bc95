package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Global metrics instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// Node service metrics
	NodeOperations *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec

	// Event bus metrics
	EventsPublished  *prometheus.CounterVec
	SubscriberErrors *prometheus.CounterVec

	// Semantic plane metrics
	EmbeddingRequests *prometheus.CounterVec
	VectorSearches    prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace.
// A singleton avoids duplicate registration when tests build multiple containers.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	nodeOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_operations_total",
			Help:      "Total number of node service operations",
		},
		[]string{"operation", "status"},
	)

	nodeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_operation_duration_seconds",
			Help:      "Node service operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	eventsPublished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of domain events published on the bus",
		},
		[]string{"event"},
	)

	subscriberErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_errors_total",
			Help:      "Total number of event subscriber failures (logged, never propagated)",
		},
		[]string{"subscriber"},
	)

	embeddingRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding model calls",
		},
		[]string{"status"},
	)

	vectorSearches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_searches_total",
			Help:      "Total number of vector database searches",
		},
	)

	registry.MustRegister(
		nodeOperations,
		nodeDuration,
		eventsPublished,
		subscriberErrors,
		embeddingRequests,
		vectorSearches,
	)

	globalCollector = &Collector{
		registry:          registry,
		NodeOperations:    nodeOperations,
		NodeDuration:      nodeDuration,
		EventsPublished:   eventsPublished,
		SubscriberErrors:  subscriberErrors,
		EmbeddingRequests: embeddingRequests,
		VectorSearches:    vectorSearches,
	}
	return globalCollector
}

// Registry exposes the collector's registry for the metrics endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveOperation records the outcome and duration of a node service operation.
func (c *Collector) ObserveOperation(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.NodeOperations.WithLabelValues(operation, status).Inc()
	c.NodeDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
