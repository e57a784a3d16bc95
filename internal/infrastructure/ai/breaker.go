package ai

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/repository"
)

// BreakerConfig tunes the model circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig mirrors the settings that work well for flaky
// upstream APIs: trip on a sustained 60% failure rate, retry after a minute.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func newBreaker(config BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("model circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// BreakerEmbeddingModel wraps an embedding model with a circuit breaker.
// While the breaker is open, Embed fails fast with gobreaker.ErrOpenState
// and the find pipeline degrades to fulltext matching.
type BreakerEmbeddingModel struct {
	model   repository.EmbeddingModel
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerEmbeddingModel decorates the model.
func NewBreakerEmbeddingModel(model repository.EmbeddingModel, config BreakerConfig, logger *zap.Logger) *BreakerEmbeddingModel {
	return &BreakerEmbeddingModel{model: model, breaker: newBreaker(config, logger)}
}

var _ repository.EmbeddingModel = (*BreakerEmbeddingModel)(nil)

func (m *BreakerEmbeddingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := m.breaker.Execute(func() (any, error) {
		return m.model.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

// BreakerOCRModel wraps an OCR model with a circuit breaker.
type BreakerOCRModel struct {
	model   repository.OCRModel
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerOCRModel decorates the model.
func NewBreakerOCRModel(model repository.OCRModel, config BreakerConfig, logger *zap.Logger) *BreakerOCRModel {
	return &BreakerOCRModel{model: model, breaker: newBreaker(config, logger)}
}

var _ repository.OCRModel = (*BreakerOCRModel)(nil)

func (m *BreakerOCRModel) OCR(ctx context.Context, file domain.File) (string, error) {
	result, err := m.breaker.Execute(func() (any, error) {
		return m.model.OCR(ctx, file)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
