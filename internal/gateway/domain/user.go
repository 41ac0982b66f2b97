package domain

import (
	"encoding/json"
	"time"
)

// Role is the coarse authorization level carried in session tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the gateway's identity record. An account always has at least
// one credential: a password hash, an OAuth linkage, or both. Creation
// paths enforce this; UnlinkAccount refuses to strand an account with
// neither.
type User struct {
	ID            string
	Email         string
	PasswordHash  string // argon2id encoded; empty for OAuth-only accounts
	Name          string
	Role          Role
	OAuthProvider Provider // empty when no provider is linked
	OAuthID       string   // provider-scoped external id
	Picture       string   // avatar URL, optional
	EmailVerified bool
	Preferences   json.RawMessage // opaque blob owned by the personalization service
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLogin     *time.Time
}

// HasPassword reports whether password login is possible.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// OAuthLinked reports whether an external identity is linked.
func (u User) OAuthLinked() bool { return u.OAuthProvider != "" && u.OAuthID != "" }

// CanAuthenticate reports whether the account has any usable credential.
// False here means the record violates the credential invariant.
func (u User) CanAuthenticate() bool { return u.HasPassword() || u.OAuthLinked() }
