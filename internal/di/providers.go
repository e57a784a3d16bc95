// Package di wires the service container. Provider functions select the
// configured backend for each persistence concern; Wire composes them into
// the injector in wire_gen.go.
package di

import (
	"context"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-chi/chi/v5"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"antbox-backend/internal/application/listeners"
	"antbox-backend/internal/config"
	"antbox-backend/internal/infrastructure/ai"
	"antbox-backend/internal/infrastructure/events"
	"antbox-backend/internal/infrastructure/persistence/dynamo"
	"antbox-backend/internal/infrastructure/persistence/memory"
	"antbox-backend/internal/infrastructure/persistence/s3"
	"antbox-backend/internal/infrastructure/persistence/sqlitevec"
	"antbox-backend/internal/repository"
	"antbox-backend/internal/service/node"
	apperrors "antbox-backend/pkg/errors"
	"antbox-backend/pkg/observability"
)

// ConfigPath locates the YAML configuration file; empty means defaults plus
// environment variables.
type ConfigPath string

// Container is the fully wired service graph.
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Collector
	Bus         *events.Bus
	Nodes       repository.NodeRepository
	Binaries    repository.BinaryStore
	ConfigRepo  repository.ConfigurationRepository
	NodeService node.Service
	Router      *chi.Mux
}

// SuperSet composes every provider for the complete application.
var SuperSet = wire.NewSet(
	provideConfig,
	provideLogger,
	provideMetrics,
	provideBus,
	provideNodeRepository,
	provideBinaryStore,
	provideConfigurationRepository,
	provideVectorDB,
	provideEmbedder,
	provideNodeService,
	provideRouter,
	provideContainer,
)

func provideConfig(path ConfigPath) (*config.Config, error) {
	return config.Load(string(path))
}

func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(string(cfg.Environment))
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func provideMetrics() *observability.Collector {
	return observability.NewCollector("antbox")
}

func provideBus(logger *zap.Logger, metrics *observability.Collector) *events.Bus {
	return events.NewBus(logger, metrics)
}

func provideNodeRepository(cfg *config.Config, logger *zap.Logger) (repository.NodeRepository, error) {
	switch cfg.Nodes.Backend {
	case config.BackendDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Nodes.Region))
		if err != nil {
			return nil, apperrors.Wrap(err, "loading aws config")
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return dynamo.NewNodeRepository(client, cfg.Nodes.Table, logger), nil
	case config.BackendMemory:
		return memory.NewNodeRepository(), nil
	default:
		return nil, apperrors.NewBadRequest("unknown nodes backend " + cfg.Nodes.Backend)
	}
}

func provideBinaryStore(cfg *config.Config) (repository.BinaryStore, error) {
	switch cfg.Binaries.Backend {
	case config.BackendS3:
		return s3.New(s3.Options{
			Endpoint:  cfg.Binaries.Endpoint,
			Region:    cfg.Binaries.Region,
			Bucket:    cfg.Binaries.Bucket,
			AccessKey: cfg.Binaries.AccessKey,
			SecretKey: cfg.Binaries.SecretKey,
		})
	case config.BackendMemory:
		return memory.NewBinaryStore(), nil
	default:
		return nil, apperrors.NewBadRequest("unknown binaries backend " + cfg.Binaries.Backend)
	}
}

func provideConfigurationRepository() repository.ConfigurationRepository {
	return memory.NewConfigurationRepository()
}

// provideVectorDB returns a nil interface when the semantic plane is off;
// the node service then degrades semantic predicates to fulltext matching.
func provideVectorDB(cfg *config.Config) (repository.VectorDB, func(), error) {
	switch cfg.Semantic.Backend {
	case config.BackendSQLite:
		db, err := sqlitevec.Open(cfg.Semantic.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	case config.BackendMemory:
		return memory.NewVectorIndex(), func() {}, nil
	case config.BackendNone:
		return nil, func() {}, nil
	default:
		return nil, nil, apperrors.NewBadRequest("unknown semantic backend " + cfg.Semantic.Backend)
	}
}

func provideEmbedder(cfg *config.Config, logger *zap.Logger) (repository.EmbeddingModel, error) {
	if cfg.Semantic.Backend == config.BackendNone || cfg.Semantic.APIKey == "" {
		return nil, nil
	}
	engine, err := ai.NewGenAIEngine(context.Background(),
		cfg.Semantic.APIKey, cfg.Semantic.EmbeddingModel, cfg.Semantic.OCRModel)
	if err != nil {
		return nil, err
	}
	return ai.NewBreakerEmbeddingModel(engine, ai.DefaultBreakerConfig("embedding"), logger), nil
}

func provideNodeService(
	cfg *config.Config,
	nodes repository.NodeRepository,
	binaries repository.BinaryStore,
	configRepo repository.ConfigurationRepository,
	bus *events.Bus,
	vectors repository.VectorDB,
	embedder repository.EmbeddingModel,
	logger *zap.Logger,
	metrics *observability.Collector,
) (node.Service, func(), error) {
	svc := node.NewService(node.Dependencies{
		Nodes:    nodes,
		Binaries: binaries,
		Config:   configRepo,
		Bus:      bus,
		Vectors:  vectors,
		Embedder: embedder,
		Logger:   logger,
		Metrics:  metrics,
	})

	cleanup := func() {}
	if vectors != nil && embedder != nil {
		indexer := listeners.NewEmbeddingIndexer(vectors, embedder, logger, metrics)
		if err := indexer.Register(bus); err != nil {
			return nil, nil, err
		}
		cleanup = indexer.Stop
	}

	timestamps := listeners.NewParentTimestampUpdater(nodes, logger)
	if err := timestamps.Register(bus); err != nil {
		return nil, nil, err
	}

	automation := listeners.NewAutomationDispatcher(nodes,
		listeners.NewLoggingFeatureRunner(logger), logger)
	if err := automation.Register(bus); err != nil {
		return nil, nil, err
	}

	return svc, cleanup, nil
}

func provideRouter(metrics *observability.Collector) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	return r
}

func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
	bus *events.Bus,
	nodes repository.NodeRepository,
	binaries repository.BinaryStore,
	configRepo repository.ConfigurationRepository,
	svc node.Service,
	router *chi.Mux,
) *Container {
	return &Container{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Bus:         bus,
		Nodes:       nodes,
		Binaries:    binaries,
		ConfigRepo:  configRepo,
		NodeService: svc,
		Router:      router,
	}
}
