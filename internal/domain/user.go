package domain

import "time"

// Role names a capability granted to an authenticated wallet.
type Role string

const (
	RoleUser     Role = "USER"
	RoleRancher  Role = "RANCHER"
	RoleVerifier Role = "VERIFIER"
	RoleAdmin    Role = "ADMIN"
)

// User is a wallet known to the service. Roles are additive: a confirmed
// ranch registration grants RANCHER, a verifier registration grants VERIFIER.
type User struct {
	PublicKey string
	Nonce     string
	Roles     []Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Session is an opaque bearer token bound to a wallet.
type Session struct {
	Token     string
	PublicKey string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session has passed its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
