package domain

import (
	"fmt"

	"antbox-backend/internal/domain/filters"
)

// PropertyType enumerates the types an aspect property may declare.
type PropertyType string

const (
	PropertyString  PropertyType = "string"
	PropertyNumber  PropertyType = "number"
	PropertyBoolean PropertyType = "boolean"
	PropertyDate    PropertyType = "date"
	PropertyUUID    PropertyType = "uuid"
	PropertyArray   PropertyType = "array"
	PropertyObject  PropertyType = "object"
)

// AspectProperty declares one property of an aspect schema. uuid-typed
// properties (directly or through ArrayType) are cross-reference checked
// against ValidationFilters on every write.
type AspectProperty struct {
	Name              string          `json:"name"`
	Type              PropertyType    `json:"type"`
	ArrayType         PropertyType    `json:"arrayType,omitempty"`
	Required          bool            `json:"required,omitempty"`
	Readonly          bool            `json:"readonly,omitempty"`
	Searchable        bool            `json:"searchable,omitempty"`
	Default           any             `json:"default,omitempty"`
	ValidationFilters filters.Filters `json:"validationFilters,omitempty"`
}

// Aspect is the configuration-repository record for an aspect schema. Aspect
// nodes created through the node service are mirrored into this shape.
type Aspect struct {
	UUID        string           `json:"uuid"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Builtin     bool             `json:"builtin,omitempty"`
	Filters     filters.Filters  `json:"filters,omitempty"`
	Properties  []AspectProperty `json:"properties"`
}

// ID implements the configuration collection key.
func (a Aspect) ID() string { return a.UUID }

// Property looks up a declared property by name.
func (a Aspect) Property(name string) (AspectProperty, bool) {
	for _, p := range a.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return AspectProperty{}, false
}

// PropertyKey builds the node property key for an aspect property.
func PropertyKey(aspectUUID, name string) string {
	return fmt.Sprintf("%s:%s", aspectUUID, name)
}

// AspectFromNode converts an aspect node into its configuration record.
func AspectFromNode(n *Node) Aspect {
	return Aspect{
		UUID:        n.UUID,
		Title:       n.Title,
		Description: n.Description,
		Builtin:     n.IsBuiltin(),
		Filters:     append(filters.Filters(nil), n.Filters...),
		Properties:  append([]AspectProperty(nil), n.AspectProperties...),
	}
}
