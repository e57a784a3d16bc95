package domain

import (
	"time"

	"antbox-backend/internal/domain/filters"
)

// NodeMetadata is the client-supplied shape for create and update requests.
// Derived fields (fulltext, modifiedTime, sanitized properties) are never
// accepted from the client; the service recomputes them on every write.
type NodeMetadata struct {
	UUID        string `json:"uuid,omitempty"`
	FID         string `json:"fid,omitempty" validate:"omitempty,max=256"`
	Title       string `json:"title" validate:"required,max=512"`
	Description string `json:"description,omitempty" validate:"max=4096"`
	Mimetype    string `json:"mimetype,omitempty"`
	Parent      string `json:"parent,omitempty"`
	Owner       string `json:"owner,omitempty" validate:"omitempty,email"`
	Group       string `json:"group,omitempty"`

	Tags       []string       `json:"tags,omitempty"`
	Aspects    []string       `json:"aspects,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`

	Permissions *Permissions    `json:"permissions,omitempty"`
	Filters     filters.Filters `json:"filters,omitempty"`

	SmartFilters filters.Groups `json:"smartFilters,omitempty"`
	Aggregations []Aggregation  `json:"aggregations,omitempty"`

	Secret string `json:"secret,omitempty"`

	AspectProperties []AspectProperty `json:"aspectProperties,omitempty"`

	Feature *FeatureProps `json:"feature,omitempty"`
	Agent   *AgentProps   `json:"agent,omitempty"`
}

// File is an uploaded or exported binary together with its identity.
type File struct {
	Name     string `json:"name"`
	Mimetype string `json:"type"`
	Content  []byte `json:"-"`
}

// Size returns the binary length in bytes.
func (f File) Size() int64 {
	return int64(len(f.Content))
}

// NewNodeFromMetadata builds a node record from client metadata. Identity
// and derived fields are filled in by the service afterwards.
func NewNodeFromMetadata(meta NodeMetadata, now time.Time) *Node {
	mimetype := meta.Mimetype
	if mimetype == "" {
		mimetype = MetaNodeMimetype
	}
	return &Node{
		UUID:             meta.UUID,
		FID:              meta.FID,
		Title:            meta.Title,
		Description:      meta.Description,
		Mimetype:         mimetype,
		Parent:           meta.Parent,
		Owner:            meta.Owner,
		Group:            meta.Group,
		CreatedTime:      now,
		ModifiedTime:     now,
		Tags:             append([]string(nil), meta.Tags...),
		Aspects:          append([]string(nil), meta.Aspects...),
		Properties:       meta.Properties,
		Permissions:      meta.Permissions.Clone(),
		Filters:          append(filters.Filters(nil), meta.Filters...),
		SmartFilters:     meta.SmartFilters.Clone(),
		Aggregations:     append([]Aggregation(nil), meta.Aggregations...),
		Secret:           meta.Secret,
		AspectProperties: append([]AspectProperty(nil), meta.AspectProperties...),
		Feature:          meta.Feature,
		Agent:            meta.Agent,
	}
}
