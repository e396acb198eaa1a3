// Package role defines the canonical role vocabulary and its total order.
//
// Every authorization decision in the module goes through [Role.AtLeast];
// no other package may define its own role set or comparison.
//
// # Hierarchy
//
//	guest < viewer < editor < moderator < admin
//
// "user" is accepted as a legacy spelling of viewer by [Parse] but is never
// emitted.
package role

// Role is a permission level in the single-dimension hierarchy.
type Role string

const (
	// Guest is an unauthenticated caller.
	Guest Role = "guest"
	// Viewer is the default role for auto-provisioned accounts.
	Viewer Role = "viewer"
	// Editor may manage content.
	Editor Role = "editor"
	// Moderator may manage content and suggestions.
	Moderator Role = "moderator"
	// Admin may do everything.
	Admin Role = "admin"
)

var levels = map[Role]int{
	Guest:     0,
	Viewer:    1,
	Editor:    2,
	Moderator: 3,
	Admin:     4,
}

// Parse normalizes a stored or transmitted role string. The legacy spelling
// "user" maps to [Viewer]. Unknown strings report ok=false and return the
// zero Role, which ranks below [Guest] and so fails every AtLeast check.
func Parse(s string) (Role, bool) {
	switch Role(s) {
	case Guest, Viewer, Editor, Moderator, Admin:
		return Role(s), true
	}
	if s == "user" {
		return Viewer, true
	}
	return "", false
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	_, ok := levels[r]
	return ok
}

// Level returns r's position in the hierarchy. Unknown roles rank below
// [Guest] so a corrupted role can never pass an AtLeast check.
func (r Role) Level() int {
	if lvl, ok := levels[r]; ok {
		return lvl
	}
	return -1
}

// AtLeast reports whether r grants the permissions of required.
func (r Role) AtLeast(required Role) bool {
	return r.Level() >= required.Level()
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}
