package domain

import "time"

// WorkflowDefinition is a configuration-repository record describing a
// workflow: its states and the transitions between them. Execution of
// instances is handled outside the core.
type WorkflowDefinition struct {
	UUID        string               `json:"uuid"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Builtin     bool                 `json:"builtin,omitempty"`
	States      []string             `json:"states"`
	Transitions []WorkflowTransition `json:"transitions,omitempty"`
}

// ID implements the configuration collection key.
func (d WorkflowDefinition) ID() string { return d.UUID }

// WorkflowTransition connects two states of a definition.
type WorkflowTransition struct {
	From string `json:"from"`
	To   string `json:"to"`
	Name string `json:"name,omitempty"`
}

// WorkflowInstance tracks one running workflow over a node.
type WorkflowInstance struct {
	UUID           string                `json:"uuid"`
	DefinitionUUID string                `json:"definitionUuid"`
	NodeUUID       string                `json:"nodeUuid"`
	State          string                `json:"state"`
	StartedBy      string                `json:"startedBy,omitempty"`
	StartedAt      time.Time             `json:"startedAt"`
	History        []WorkflowStateChange `json:"history,omitempty"`
}

// ID implements the configuration collection key.
func (i WorkflowInstance) ID() string { return i.UUID }

// WorkflowStateChange records one step of an instance's history.
type WorkflowStateChange struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	By   string    `json:"by,omitempty"`
	At   time.Time `json:"at"`
}
