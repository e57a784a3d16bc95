package domain

// Capability is a folder permission: what a principal may do with the
// folder's children.
type Capability string

const (
	CapabilityRead   Capability = "Read"
	CapabilityWrite  Capability = "Write"
	CapabilityExport Capability = "Export"
)

// Permissions describes who may act on a folder. The four buckets are
// evaluated in the resolver's fixed order; Advanced grants capabilities to
// specific groups beyond the folder's primary group.
type Permissions struct {
	Anonymous     []Capability            `json:"anonymous"`
	Authenticated []Capability            `json:"authenticated"`
	Group         []Capability            `json:"group"`
	Advanced      map[string][]Capability `json:"advanced,omitempty"`
}

// DefaultPermissions is applied to new folders whose parent carries none.
func DefaultPermissions() *Permissions {
	return &Permissions{
		Anonymous:     []Capability{},
		Authenticated: []Capability{CapabilityRead, CapabilityWrite, CapabilityExport},
		Group:         []Capability{},
		Advanced:      map[string][]Capability{},
	}
}

// Has reports whether a capability list contains c.
func Has(caps []Capability, c Capability) bool {
	for _, cap := range caps {
		if cap == c {
			return true
		}
	}
	return false
}

// Clone performs a deep copy, so inherited permissions do not alias the
// parent's buckets.
func (p *Permissions) Clone() *Permissions {
	if p == nil {
		return nil
	}
	out := &Permissions{
		Anonymous:     append([]Capability(nil), p.Anonymous...),
		Authenticated: append([]Capability(nil), p.Authenticated...),
		Group:         append([]Capability(nil), p.Group...),
		Advanced:      make(map[string][]Capability, len(p.Advanced)),
	}
	for g, caps := range p.Advanced {
		out.Advanced[g] = append([]Capability(nil), caps...)
	}
	return out
}

func capabilityStrings(caps []Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
