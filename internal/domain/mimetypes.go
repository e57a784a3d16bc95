// Package domain holds the node model for the Antbox ECM core: the node sum
// type and its variants, permissions, principals, built-in entries and the
// domain events emitted by the node service.
package domain

import "strings"

// Reserved mimetypes. A node's variant is discriminated by its mimetype;
// everything outside this table is a plain file.
const (
	FolderMimetype      = "application/vnd.antbox.folder"
	SmartFolderMimetype = "application/vnd.antbox.smart-folder"
	AspectMimetype      = "application/vnd.antbox.aspect"
	FeatureMimetype     = "application/vnd.antbox.feature"
	MetaNodeMimetype    = "application/vnd.antbox.meta-node"
	APIKeyMimetype      = "application/vnd.antbox.api-key"
	AgentMimetype       = "application/vnd.antbox.agent"
)

// Reserved uuids for built-in folders and groups.
const (
	RootFolderUUID     = "--root--"
	SystemFolderUUID   = "--system--"
	APIKeysFolderUUID  = "--api-keys--"
	AspectsFolderUUID  = "--aspects--"
	FeaturesFolderUUID = "--features--"
	UsersFolderUUID    = "--users--"
	GroupsFolderUUID   = "--groups--"
	AgentsFolderUUID   = "--agents--"

	AdminsGroupUUID    = "--admins--"
	AnonymousGroupUUID = "--anonymous--"
)

// Built-in users.
const (
	RootUserEmail      = "root@antbox.io"
	AnonymousUserEmail = "anonymous@antbox.io"
)

// FIDPrefix encodes a fid lookup: a uuid of the form --fid--<slug> targets
// the node whose fid equals the slug.
const FIDPrefix = "--fid--"

var reservedMimetypes = map[string]bool{
	FolderMimetype:      true,
	SmartFolderMimetype: true,
	AspectMimetype:      true,
	FeatureMimetype:     true,
	MetaNodeMimetype:    true,
	APIKeyMimetype:      true,
	AgentMimetype:       true,
}

// IsReservedMimetype reports whether the mimetype denotes a node variant.
func IsReservedMimetype(mimetype string) bool {
	return reservedMimetypes[mimetype]
}

// IsBuiltinUUID reports whether a uuid is reserved for built-in entries.
// Built-in uuids are wrapped in double dashes; fid aliases are excluded.
func IsBuiltinUUID(uuid string) bool {
	if IsFID(uuid) {
		return false
	}
	return strings.HasPrefix(uuid, "--") && strings.HasSuffix(uuid, "--") && len(uuid) > 4
}

// IsFID reports whether the identifier is a fid alias.
func IsFID(uuid string) bool {
	return strings.HasPrefix(uuid, FIDPrefix)
}

// FIDToSlug extracts the fid slug from a --fid--<slug> identifier.
func FIDToSlug(uuid string) string {
	return strings.TrimPrefix(uuid, FIDPrefix)
}

// ExportMimetype maps reserved mimetypes to the type the export operation
// returns the binary as.
func ExportMimetype(mimetype string) string {
	switch mimetype {
	case FeatureMimetype:
		return "application/javascript"
	case SmartFolderMimetype, AspectMimetype, AgentMimetype:
		return "application/json"
	default:
		return mimetype
	}
}
