package listeners

import (
	"context"

	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/domain/filters"
	"antbox-backend/internal/infrastructure/events"
	"antbox-backend/internal/repository"
)

// FeatureRunner executes a feature node against the node that triggered it.
// The node service provides a runner in deployments with a script engine;
// tests substitute a recorder.
type FeatureRunner interface {
	Run(ctx context.Context, auth domain.AuthContext, feature *domain.Node, nodeUUID string) error
}

// FeatureRunnerFunc adapts a function to the FeatureRunner interface.
type FeatureRunnerFunc func(ctx context.Context, auth domain.AuthContext, feature *domain.Node, nodeUUID string) error

func (f FeatureRunnerFunc) Run(ctx context.Context, auth domain.AuthContext, feature *domain.Node, nodeUUID string) error {
	return f(ctx, auth, feature, nodeUUID)
}

// LoggingFeatureRunner records triggered features without executing them.
// It stands in until a script engine is plugged behind the runner boundary.
type LoggingFeatureRunner struct {
	logger *zap.Logger
}

// NewLoggingFeatureRunner creates the stub runner.
func NewLoggingFeatureRunner(logger *zap.Logger) *LoggingFeatureRunner {
	return &LoggingFeatureRunner{logger: logger}
}

func (r *LoggingFeatureRunner) Run(ctx context.Context, auth domain.AuthContext, feature *domain.Node, nodeUUID string) error {
	r.logger.Info("automation feature triggered",
		zap.String("feature", feature.UUID),
		zap.String("node", nodeUUID),
	)
	return nil
}

// AutomationDispatcher runs feature nodes marked runOnCreates, runOnUpdates
// or runOnDeletes against matching nodes. Execution is best effort: a failing
// feature is logged and never affects the triggering operation.
type AutomationDispatcher struct {
	nodes  repository.NodeRepository
	runner FeatureRunner
	logger *zap.Logger
}

// NewAutomationDispatcher creates the dispatcher.
func NewAutomationDispatcher(nodes repository.NodeRepository, runner FeatureRunner, logger *zap.Logger) *AutomationDispatcher {
	return &AutomationDispatcher{nodes: nodes, runner: runner, logger: logger}
}

// Register subscribes the dispatcher to the three lifecycle events.
func (d *AutomationDispatcher) Register(bus *events.Bus) error {
	for _, id := range []string{domain.EventNodeCreated, domain.EventNodeUpdated, domain.EventNodeDeleted} {
		handler := events.HandlerFunc{HandlerName: "automation-dispatcher", Fn: d.handle}
		if err := bus.Subscribe(id, handler); err != nil {
			return err
		}
	}
	return nil
}

func (d *AutomationDispatcher) handle(ctx context.Context, event domain.DomainEvent) error {
	var subject *domain.Node
	switch e := event.(type) {
	case *domain.NodeCreatedEvent:
		subject = e.Payload
	case *domain.NodeUpdatedEvent:
		// The diff event carries no payload; load the current state.
		node, err := d.nodes.GetByUUID(ctx, event.Tenant(), event.AggregateID())
		if err != nil {
			return err
		}
		subject = node
	case *domain.NodeDeletedEvent:
		subject = e.Payload
	default:
		return nil
	}
	if subject.IsFeature() {
		// Features do not trigger other features.
		return nil
	}

	features, err := d.triggeredFeatures(ctx, event.Tenant(), event.EventID())
	if err != nil {
		return err
	}

	auth := domain.RootAuthContext(event.Tenant())
	for _, feature := range features {
		if !matches(feature, subject) {
			continue
		}
		if err := d.runner.Run(ctx, auth, feature, subject.UUID); err != nil {
			d.logger.Warn("automation feature failed",
				zap.String("feature", feature.UUID),
				zap.String("node", subject.UUID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// triggeredFeatures lists the feature nodes whose automation flag matches
// the event.
func (d *AutomationDispatcher) triggeredFeatures(ctx context.Context, tenant, eventID string) ([]*domain.Node, error) {
	query := filters.Groups{{{
		Field:    "mimetype",
		Operator: filters.OpEqual,
		Value:    domain.FeatureMimetype,
	}}}

	var out []*domain.Node
	page := repository.All()
	for {
		result, err := d.nodes.Filter(ctx, tenant, query, page)
		if err != nil {
			return nil, err
		}
		for _, n := range result.Nodes {
			if n.Feature == nil {
				continue
			}
			if triggered(n.Feature, eventID) {
				out = append(out, n)
			}
		}
		if page.PageToken >= result.PageCount {
			return out, nil
		}
		page.PageToken++
	}
}

func triggered(props *domain.FeatureProps, eventID string) bool {
	switch eventID {
	case domain.EventNodeCreated:
		return props.RunOnCreates
	case domain.EventNodeUpdated:
		return props.RunOnUpdates
	case domain.EventNodeDeleted:
		return props.RunOnDeletes
	default:
		return false
	}
}

// matches evaluates the feature's filter restriction against the node.
// A feature without filters matches everything its flags select.
func matches(feature *domain.Node, subject *domain.Node) bool {
	if feature.Feature == nil {
		return false
	}
	return filters.Satisfies(feature.Feature.Filters, subject.Resolver())
}
