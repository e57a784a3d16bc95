package domain

import (
	"reflect"
	"strings"
	"time"

	"antbox-backend/internal/domain/filters"
)

// Node is the sum type at the heart of the repository, discriminated by
// Mimetype. Variant-specific attributes live in optional sub-structs;
// operations that care about the variant test the predicates below instead
// of inspecting mimetype strings directly.
type Node struct {
	UUID        string `json:"uuid"`
	FID         string `json:"fid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Mimetype    string `json:"mimetype"`
	Parent      string `json:"parent,omitempty"`
	Owner       string `json:"owner"`
	Group       string `json:"group,omitempty"`

	CreatedTime  time.Time `json:"createdTime"`
	ModifiedTime time.Time `json:"modifiedTime"`

	Tags     []string `json:"tags,omitempty"`
	Fulltext string   `json:"fulltext,omitempty"`

	// File variant
	Size int64 `json:"size,omitempty"`

	// Aspectable variants (file, meta node)
	Aspects    []string       `json:"aspects,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`

	// Folder variant. Filters doubles as the aspect variant's bearer
	// restriction and the feature variant's automation match.
	Permissions *Permissions    `json:"permissions,omitempty"`
	Filters     filters.Filters `json:"filters,omitempty"`

	// Smart folder variant
	SmartFilters filters.Groups `json:"smartFilters,omitempty"`
	Aggregations []Aggregation  `json:"aggregations,omitempty"`

	// API key variant. The secret never leaves the service through standard
	// reads; see WithoutSecret.
	Secret string `json:"secret,omitempty"`

	// Aspect variant: the schema this aspect defines.
	AspectProperties []AspectProperty `json:"aspectProperties,omitempty"`

	// Feature and agent variants
	Feature *FeatureProps `json:"feature,omitempty"`
	Agent   *AgentProps   `json:"agent,omitempty"`
}

// Variant predicates

func (n *Node) IsFolder() bool      { return n.Mimetype == FolderMimetype }
func (n *Node) IsSmartFolder() bool { return n.Mimetype == SmartFolderMimetype }
func (n *Node) IsAspect() bool      { return n.Mimetype == AspectMimetype }
func (n *Node) IsFeature() bool     { return n.Mimetype == FeatureMimetype }
func (n *Node) IsMetaNode() bool    { return n.Mimetype == MetaNodeMimetype }
func (n *Node) IsAPIKey() bool      { return n.Mimetype == APIKeyMimetype }
func (n *Node) IsAgent() bool       { return n.Mimetype == AgentMimetype }

// IsFile reports whether the node is a plain file (any non-reserved mimetype).
func (n *Node) IsFile() bool {
	return !IsReservedMimetype(n.Mimetype)
}

// HasBinary reports whether the node owns a stream in the binary store.
// Plain files always do; features carry their script as a binary.
func (n *Node) HasBinary() bool {
	return n.IsFile() || n.IsFeature()
}

// Aspectable reports whether the node may bear aspects.
func (n *Node) Aspectable() bool {
	return n.IsFile() || n.IsMetaNode()
}

// IsBuiltin reports whether the node is a reserved built-in entry; built-ins
// cannot be updated or deleted.
func (n *Node) IsBuiltin() bool {
	return IsBuiltinUUID(n.UUID)
}

// WithoutSecret returns a clone safe for standard reads: the api-key secret
// is redacted.
func (n *Node) WithoutSecret() *Node {
	if !n.IsAPIKey() || n.Secret == "" {
		return n
	}
	clone := n.Clone()
	clone.Secret = ""
	return clone
}

// Clone performs a deep enough copy that callers can mutate the result
// without aliasing repository state.
func (n *Node) Clone() *Node {
	clone := *n
	clone.Tags = append([]string(nil), n.Tags...)
	clone.Aspects = append([]string(nil), n.Aspects...)
	if n.Properties != nil {
		clone.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			clone.Properties[k] = v
		}
	}
	clone.Permissions = n.Permissions.Clone()
	clone.Filters = append(filters.Filters(nil), n.Filters...)
	clone.SmartFilters = n.SmartFilters.Clone()
	clone.Aggregations = append([]Aggregation(nil), n.Aggregations...)
	clone.AspectProperties = append([]AspectProperty(nil), n.AspectProperties...)
	if n.Feature != nil {
		f := *n.Feature
		f.Parameters = append([]FeatureParameter(nil), n.Feature.Parameters...)
		f.GroupsAllowed = append([]string(nil), n.Feature.GroupsAllowed...)
		f.Filters = append(filters.Filters(nil), n.Feature.Filters...)
		clone.Feature = &f
	}
	if n.Agent != nil {
		a := *n.Agent
		clone.Agent = &a
	}
	return &clone
}

// FilterValue resolves a filter field against this node. It backs the filter
// engine: scalar attributes, dotted aspect property paths, permission buckets
// and the aspects membership array are all addressable.
func (n *Node) FilterValue(field string) (any, bool) {
	switch field {
	case "uuid":
		return n.UUID, true
	case "fid":
		return n.FID, true
	case "title":
		return n.Title, true
	case "description":
		return n.Description, true
	case "mimetype":
		return n.Mimetype, true
	case "parent":
		return n.Parent, true
	case "owner":
		return n.Owner, true
	case "group":
		return n.Group, true
	case "createdTime":
		return n.CreatedTime.UTC().Format(time.RFC3339), true
	case "modifiedTime":
		return n.ModifiedTime.UTC().Format(time.RFC3339), true
	case "size":
		return n.Size, true
	case "tags":
		return n.Tags, true
	case "aspects":
		return n.Aspects, true
	case "fulltext":
		return n.Fulltext, true
	}

	if key, ok := strings.CutPrefix(field, "properties."); ok {
		v, ok := n.Properties[key]
		return v, ok
	}

	if n.Permissions != nil {
		switch field {
		case "permissions.anonymous":
			return capabilityStrings(n.Permissions.Anonymous), true
		case "permissions.authenticated":
			return capabilityStrings(n.Permissions.Authenticated), true
		case "permissions.group":
			return capabilityStrings(n.Permissions.Group), true
		}
		if group, ok := strings.CutPrefix(field, "permissions.advanced."); ok {
			caps, ok := n.Permissions.Advanced[group]
			return capabilityStrings(caps), ok
		}
	}

	return nil, false
}

// Resolver adapts the node to the filter engine.
func (n *Node) Resolver() filters.Resolver {
	return n.FilterValue
}

// DiffNodes computes the old and new values of the fields that changed
// between two versions of a node. The maps feed the NodeUpdated event.
func DiffNodes(before, after *Node) (old, new map[string]any) {
	old = map[string]any{}
	new = map[string]any{}
	for _, field := range diffFields {
		ov, _ := before.FilterValue(field)
		nv, _ := after.FilterValue(field)
		if !filterValueEqual(ov, nv) {
			old[field] = ov
			new[field] = nv
		}
	}
	if !propertiesEqual(before.Properties, after.Properties) {
		old["properties"] = before.Properties
		new["properties"] = after.Properties
	}
	return old, new
}

var diffFields = []string{
	"title", "description", "parent", "owner", "group",
	"modifiedTime", "size", "tags", "aspects", "fulltext", "mimetype",
}

func filterValueEqual(a, b any) bool {
	if sa, ok := a.([]string); ok {
		sb, ok := b.([]string)
		if !ok || len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if sa[i] != sb[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

func propertiesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}
