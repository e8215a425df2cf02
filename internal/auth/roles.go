package auth

import "strings"

// Role is the access level a token grants on mapping programs.
type Role string

const (
	// RoleViewer opens sessions, reads, filters and exports.
	RoleViewer Role = "viewer"
	// RoleEditor also edits rows, moves the window and saves.
	RoleEditor Role = "editor"
	// RoleAdmin is unrestricted within its tenant.
	RoleAdmin Role = "admin"
)

// NormalizeRole parses a role claim. "operator" is accepted as an editor.
func NormalizeRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RoleViewer):
		return RoleViewer, true
	case string(RoleEditor), "operator":
		return RoleEditor, true
	case string(RoleAdmin):
		return RoleAdmin, true
	}
	return "", false
}

// Allows reports whether r satisfies required.
func (r Role) Allows(required Role) bool {
	return r.level() >= required.level() && r.level() > 0
}

func (r Role) level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}
