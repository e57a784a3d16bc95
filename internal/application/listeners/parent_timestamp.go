package listeners

import (
	"context"
	"time"

	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/infrastructure/events"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

// ParentTimestampUpdater touches a folder's modified time when its children
// change. It writes through the repository directly and publishes nothing,
// otherwise every touch would fan out into another update event.
type ParentTimestampUpdater struct {
	nodes  repository.NodeRepository
	logger *zap.Logger
}

// NewParentTimestampUpdater creates the updater.
func NewParentTimestampUpdater(nodes repository.NodeRepository, logger *zap.Logger) *ParentTimestampUpdater {
	return &ParentTimestampUpdater{nodes: nodes, logger: logger}
}

// Register subscribes the updater to creations and deletions.
func (u *ParentTimestampUpdater) Register(bus *events.Bus) error {
	for _, id := range []string{domain.EventNodeCreated, domain.EventNodeDeleted} {
		handler := events.HandlerFunc{HandlerName: "parent-timestamp-updater", Fn: u.handle}
		if err := bus.Subscribe(id, handler); err != nil {
			return err
		}
	}
	return nil
}

func (u *ParentTimestampUpdater) handle(ctx context.Context, event domain.DomainEvent) error {
	var parent string
	switch e := event.(type) {
	case *domain.NodeCreatedEvent:
		parent = e.Payload.Parent
	case *domain.NodeDeletedEvent:
		parent = e.Payload.Parent
	default:
		return nil
	}
	return u.touch(ctx, event.Tenant(), parent, event.OccurredAt())
}

// touch bumps the parent folder's modified time. Built-in folders are
// virtual and have no stored record to bump.
func (u *ParentTimestampUpdater) touch(ctx context.Context, tenant, parent string, at time.Time) error {
	if parent == "" || domain.IsBuiltinUUID(parent) {
		return nil
	}
	folder, err := u.nodes.GetByUUID(ctx, tenant, parent)
	if err != nil {
		// The parent may be gone already when a cascade delete races us.
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	updated := folder.Clone()
	updated.ModifiedTime = at
	if err := u.nodes.Update(ctx, tenant, updated); err != nil {
		u.logger.Warn("parent timestamp update failed",
			zap.String("parent", parent),
			zap.Error(err),
		)
	}
	return nil
}
