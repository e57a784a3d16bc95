package domain

import "time"

// builtinEpoch is the timestamp stamped on all built-in entries.
var builtinEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// User is a built-in or configured account. Full user management lives
// outside the core; the service only needs the built-ins.
type User struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Groups []string `json:"groups,omitempty"`
}

// Group is a principal group referenced by folder permissions.
type Group struct {
	UUID  string `json:"uuid"`
	Title string `json:"title"`
}

// BuiltinUsers returns the reserved accounts.
func BuiltinUsers() []User {
	return []User{
		{Email: RootUserEmail, Name: "root", Groups: []string{AdminsGroupUUID}},
		{Email: AnonymousUserEmail, Name: "anonymous", Groups: []string{AnonymousGroupUUID}},
	}
}

// BuiltinGroups returns the reserved groups.
func BuiltinGroups() []Group {
	return []Group{
		{UUID: AdminsGroupUUID, Title: "Admins"},
		{UUID: AnonymousGroupUUID, Title: "Anonymous"},
	}
}

// RootFolder returns the repository root. Authenticated users can read it;
// writing at the top level is reserved to admins.
func RootFolder() *Node {
	return builtinFolder(RootFolderUUID, "Root", "", &Permissions{
		Anonymous:     []Capability{},
		Authenticated: []Capability{CapabilityRead},
		Group:         []Capability{},
		Advanced:      map[string][]Capability{},
	})
}

// SystemFolder returns the virtual folder that hosts aspects, features,
// users, groups, agents and api keys. Admin only.
func SystemFolder() *Node {
	return builtinFolder(SystemFolderUUID, "System", RootFolderUUID, &Permissions{
		Anonymous:     []Capability{},
		Authenticated: []Capability{},
		Group:         []Capability{},
		Advanced:      map[string][]Capability{},
	})
}

// systemSubfolders maps the reserved sub-system folders to their titles.
var systemSubfolders = []struct {
	uuid  string
	title string
}{
	{APIKeysFolderUUID, "API Keys"},
	{AspectsFolderUUID, "Aspects"},
	{FeaturesFolderUUID, "Features"},
	{UsersFolderUUID, "Users"},
	{GroupsFolderUUID, "Groups"},
	{AgentsFolderUUID, "Agents"},
}

// BuiltinFolders returns every built-in folder, root first.
func BuiltinFolders() []*Node {
	out := []*Node{RootFolder(), SystemFolder()}
	for _, sub := range systemSubfolders {
		out = append(out, builtinFolder(sub.uuid, sub.title, SystemFolderUUID, &Permissions{
			Anonymous:     []Capability{},
			Authenticated: []Capability{},
			Group:         []Capability{},
			Advanced:      map[string][]Capability{},
		}))
	}
	return out
}

// BuiltinFolder looks up a built-in folder by uuid.
func BuiltinFolder(uuid string) (*Node, bool) {
	for _, f := range BuiltinFolders() {
		if f.UUID == uuid {
			return f, true
		}
	}
	return nil, false
}

// BuiltinFolderByFID looks up a built-in folder by its fid slug, so the
// --fid-- alias form resolves built-ins the same way uuids do.
func BuiltinFolderByFID(slug string) (*Node, bool) {
	for _, f := range BuiltinFolders() {
		if f.FID == slug {
			return f, true
		}
	}
	return nil, false
}

// BuiltinAspects returns the aspect schemas shipped with the system.
func BuiltinAspects() []Aspect {
	return []Aspect{}
}

func builtinFolder(uuid, title, parent string, perms *Permissions) *Node {
	return &Node{
		UUID:         uuid,
		FID:          FIDFromTitle(title),
		Title:        title,
		Mimetype:     FolderMimetype,
		Parent:       parent,
		Owner:        RootUserEmail,
		Group:        AdminsGroupUUID,
		CreatedTime:  builtinEpoch,
		ModifiedTime: builtinEpoch,
		Permissions:  perms,
	}
}
