package node

import (
	"context"

	"go.uber.org/zap"

	"antbox-backend/internal/domain"
	apperrors "antbox-backend/pkg/errors"
)

// Delete removes a node, cascading depth-first through folder children.
// Every removed node publishes its own NodeDeleted event; binaries go first
// so no record ever points at a stream that outlived it.
func (s *service) Delete(ctx context.Context, auth domain.AuthContext, uuid string) (err error) {
	start := s.now()
	defer func() { s.observe("delete", start, err) }()

	node, err := s.lookupNode(ctx, auth.Tenant, uuid)
	if err != nil {
		return err
	}
	if node.IsBuiltin() {
		return apperrors.NewBadRequest("built-in nodes cannot be deleted")
	}

	target, err := s.permissionTarget(ctx, auth.Tenant, node)
	if err != nil {
		return err
	}
	if err := s.resolver.Decide(auth, target, domain.CapabilityWrite); err != nil {
		return err
	}

	return s.deleteCascade(ctx, auth, node)
}

// deleteCascade removes children before the node itself. Cancellation stops
// further child deletions; nodes already removed stay removed.
func (s *service) deleteCascade(ctx context.Context, auth domain.AuthContext, node *domain.Node) error {
	if node.IsFolder() {
		children, err := s.allChildren(ctx, auth.Tenant, node.UUID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.deleteCascade(ctx, auth, child); err != nil {
				return err
			}
		}
	}

	if node.HasBinary() {
		if err := s.binaries.Delete(ctx, auth.Tenant, node.UUID); err != nil {
			// A record without a stream is still deletable; anything else
			// aborts before the record disappears.
			if !apperrors.IsNotFound(err) {
				return err
			}
		}
	}

	if err := s.nodes.Delete(ctx, auth.Tenant, node.UUID); err != nil {
		return err
	}

	if node.IsAspect() {
		if err := s.config.Aspects().Delete(ctx, auth.Tenant, node.UUID); err != nil && !apperrors.IsNotFound(err) {
			s.logger.Warn("aspect mirror delete failed",
				zap.String("uuid", node.UUID),
				zap.Error(err),
			)
		}
	}

	s.publish(ctx, domain.NewNodeDeletedEvent(auth, node.WithoutSecret()))
	return nil
}
