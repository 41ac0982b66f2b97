package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/chatterhq/gateway/internal/gateway/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to stop callers from accidentally nesting transactions.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up by normalized (lowercased) email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByOAuth looks up by a linked external identity.
	GetUserByOAuth(ctx context.Context, provider domain.Provider, externalID string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email or the OAuth linkage is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// SetOAuthLink attaches an external identity to an existing unlinked
	// user and bumps updated_at. Returns ErrAlreadyExists when the user
	// already carries a linkage or when another user holds the identity
	// (the unique index on (oauth_provider, oauth_id) arbitrates), so
	// concurrent links never replace an earlier one.
	SetOAuthLink(ctx context.Context, userID string, provider domain.Provider, externalID string) error

	// ClearOAuthLink removes the external identity, if any.
	ClearOAuthLink(ctx context.Context, userID string) error

	// UpdateName mutates the display name and bumps updated_at.
	UpdateName(ctx context.Context, userID string, name string) error

	// UpdatePicture sets the avatar URL and bumps updated_at.
	UpdatePicture(ctx context.Context, userID string, picture string) error

	// UpdatePreferences replaces the preferences blob wholesale.
	UpdatePreferences(ctx context.Context, userID string, prefs json.RawMessage) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateRole changes the authorization level.
	UpdateRole(ctx context.Context, userID string, role domain.Role) error

	// MarkEmailVerified flips email_verified on.
	MarkEmailVerified(ctx context.Context, userID string) error

	// TouchLastLogin stamps last_login with the current time.
	TouchLastLogin(ctx context.Context, userID string) error

	// ListUsers returns users ordered by creation date (newest first).
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)

	// CountUsers returns the total number of accounts.
	CountUsers(ctx context.Context) (int64, error)

	// DeleteUser removes the account.
	DeleteUser(ctx context.Context, userID string) error
}
