package domain

import (
	"antbox-backend/internal/domain/filters"

	apperrors "antbox-backend/pkg/errors"
)

// FeatureParameter declares one input of a feature.
type FeatureParameter struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	ArrayType string `json:"arrayType,omitempty"`
	Required  bool   `json:"required,omitempty"`
}

// FeatureProps configures a feature node: an executable unit exposed as an
// action, an extension, or an AI tool.
type FeatureProps struct {
	Parameters []FeatureParameter `json:"parameters,omitempty"`
	ReturnType string             `json:"returnType,omitempty"`
	Filters    filters.Filters    `json:"filters,omitempty"`

	ExposeAction    bool `json:"exposeAction,omitempty"`
	ExposeExtension bool `json:"exposeExtension,omitempty"`
	ExposeAITool    bool `json:"exposeAITool,omitempty"`

	RunOnCreates  bool     `json:"runOnCreates,omitempty"`
	RunOnUpdates  bool     `json:"runOnUpdates,omitempty"`
	RunOnDeletes  bool     `json:"runOnDeletes,omitempty"`
	RunManually   bool     `json:"runManually,omitempty"`
	RunAs         string   `json:"runAs,omitempty"`
	GroupsAllowed []string `json:"groupsAllowed,omitempty"`
}

// Parameter looks up a declared parameter by name.
func (f *FeatureProps) Parameter(name string) (FeatureParameter, bool) {
	for _, p := range f.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return FeatureParameter{}, false
}

// Validate enforces the structural rules for exposed features: an action
// must accept the selected node uuids and cannot take files, which only
// extensions may receive.
func (f *FeatureProps) Validate() error {
	if f.ExposeAction {
		uuids, ok := f.Parameter("uuids")
		if !ok {
			return apperrors.NewBadRequest("feature exposed as action requires a 'uuids' parameter")
		}
		if uuids.Type != "array" || uuids.ArrayType != "string" {
			return apperrors.NewBadRequest("feature 'uuids' parameter must be an array of strings")
		}
	}
	for _, p := range f.Parameters {
		if p.Type != "file" {
			continue
		}
		if f.ExposeAction {
			return apperrors.NewBadRequest("feature exposed as action cannot declare file parameters")
		}
		if !f.ExposeExtension {
			return apperrors.NewBadRequest("file parameters require the feature to be exposed as extension")
		}
	}
	return nil
}
