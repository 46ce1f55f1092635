// Package hub implements the server side of the realtime channel: the
// authentication gate, the connection registry, the control-message
// dispatcher and the subscription-scoped broadcaster.
package hub

// IdentityKind discriminates the two kinds of connecting principals.
type IdentityKind string

const (
	// IdentityUser is a human operator authenticated by a session token.
	IdentityUser IdentityKind = "user"
	// IdentityAgent is an autonomous agent authenticated by an API key.
	IdentityAgent IdentityKind = "agent"
)

// Identity is the principal resolved by the auth gate for one connection
// attempt. It is immutable for the connection's lifetime.
type Identity struct {
	Kind  IdentityKind `json:"kind"`
	ID    string       `json:"id"`
	OrgID string       `json:"org_id"`
	Role  string       `json:"role,omitempty"`
}
