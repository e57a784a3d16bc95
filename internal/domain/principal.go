package domain

// Principal identifies the caller of a node service operation.
type Principal struct {
	Email  string   `json:"email"`
	Groups []string `json:"groups"`
}

// IsAdmin reports whether the principal bypasses permission checks.
func (p Principal) IsAdmin() bool {
	if p.Email == RootUserEmail {
		return true
	}
	return p.InGroup(AdminsGroupUUID)
}

// IsAnonymous reports whether the principal is the anonymous user.
func (p Principal) IsAnonymous() bool {
	return p.Email == "" || p.Email == AnonymousUserEmail
}

// InGroup reports group membership.
func (p Principal) InGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// AuthContext carries the tenant tag and the acting principal through every
// node service operation.
type AuthContext struct {
	Tenant    string    `json:"tenant"`
	Principal Principal `json:"principal"`
}

// RootAuthContext builds an admin context for a tenant. Used by bootstrap
// code and by subscribers that act on behalf of the system.
func RootAuthContext(tenant string) AuthContext {
	return AuthContext{
		Tenant:    tenant,
		Principal: Principal{Email: RootUserEmail, Groups: []string{AdminsGroupUUID}},
	}
}

// AnonymousAuthContext builds the anonymous context for a tenant.
func AnonymousAuthContext(tenant string) AuthContext {
	return AuthContext{
		Tenant:    tenant,
		Principal: Principal{Email: AnonymousUserEmail, Groups: []string{AnonymousGroupUUID}},
	}
}
