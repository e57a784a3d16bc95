package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event ids carried on the bus. Subscription is by event id.
const (
	EventNodeCreated = "NodeCreatedEvent"
	EventNodeUpdated = "NodeUpdatedEvent"
	EventNodeDeleted = "NodeDeletedEvent"
)

// DomainEvent represents an important business occurrence in the domain.
type DomainEvent interface {
	// EventID returns the event id used for subscription routing.
	EventID() string

	// AggregateID returns the uuid of the node that generated this event.
	AggregateID() string

	// Tenant returns the tenant tag of the originating operation.
	Tenant() string

	// Principal returns the email of the user who triggered this event.
	Principal() string

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides common functionality for all domain events.
type BaseEvent struct {
	ID          string    `json:"eventId"`
	NodeUUID    string    `json:"uuid"`
	TenantTag   string    `json:"tenant"`
	UserEmail   string    `json:"principal"`
	OccurredUTC time.Time `json:"occurredAt"`
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) AggregateID() string   { return e.NodeUUID }
func (e BaseEvent) Tenant() string        { return e.TenantTag }
func (e BaseEvent) Principal() string     { return e.UserEmail }
func (e BaseEvent) OccurredAt() time.Time { return e.OccurredUTC }

func newBaseEvent(eventID string, auth AuthContext, nodeUUID string) BaseEvent {
	return BaseEvent{
		ID:          eventID,
		NodeUUID:    nodeUUID,
		TenantTag:   auth.Tenant,
		UserEmail:   auth.Principal.Email,
		OccurredUTC: time.Now().UTC(),
	}
}

// NodeCreatedEvent is published after a node is persisted.
type NodeCreatedEvent struct {
	BaseEvent
	Payload *Node `json:"payload"`
}

// NewNodeCreatedEvent creates a NodeCreatedEvent for a freshly stored node.
func NewNodeCreatedEvent(auth AuthContext, node *Node) *NodeCreatedEvent {
	return &NodeCreatedEvent{
		BaseEvent: newBaseEvent(EventNodeCreated, auth, node.UUID),
		Payload:   node,
	}
}

// NodeUpdatedEvent carries the old and new values of the touched fields.
type NodeUpdatedEvent struct {
	BaseEvent
	OldValues map[string]any `json:"oldValues"`
	NewValues map[string]any `json:"newValues"`
}

// NewNodeUpdatedEvent creates a NodeUpdatedEvent from a computed diff.
func NewNodeUpdatedEvent(auth AuthContext, nodeUUID string, oldValues, newValues map[string]any) *NodeUpdatedEvent {
	return &NodeUpdatedEvent{
		BaseEvent: newBaseEvent(EventNodeUpdated, auth, nodeUUID),
		OldValues: oldValues,
		NewValues: newValues,
	}
}

// NodeDeletedEvent is published after a node is removed, carrying its final
// state so subscribers can clean up derived data.
type NodeDeletedEvent struct {
	BaseEvent
	Payload *Node `json:"payload"`
}

// NewNodeDeletedEvent creates a NodeDeletedEvent.
func NewNodeDeletedEvent(auth AuthContext, node *Node) *NodeDeletedEvent {
	return &NodeDeletedEvent{
		BaseEvent: newBaseEvent(EventNodeDeleted, auth, node.UUID),
		Payload:   node,
	}
}

// NewEventUUID generates an identifier for infrastructure that needs to tag
// individual deliveries.
func NewEventUUID() string {
	return uuid.New().String()
}
