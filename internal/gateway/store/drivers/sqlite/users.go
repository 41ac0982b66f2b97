package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, password_hash, name, role, oauth_provider, oauth_id,
	picture, email_verified, preferences, created_at, updated_at, last_login`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) GetUserByOAuth(ctx context.Context, provider domain.Provider, externalID string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE oauth_provider = ? AND oauth_id = ?`,
		string(provider), externalID)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	prefs := u.Preferences
	if len(prefs) == 0 {
		prefs = json.RawMessage(`{}`)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_hash, name, role, oauth_provider, oauth_id,
			picture, email_verified, preferences,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		u.ID,
		u.Email,
		mapStringNull(u.PasswordHash),
		u.Name,
		string(u.Role),
		mapStringNull(string(u.OAuthProvider)),
		mapStringNull(u.OAuthID),
		mapStringNull(u.Picture),
		u.EmailVerified,
		string(prefs),
	)
	return mapConstraint(err)
}

func (r *usersRepo) SetOAuthLink(ctx context.Context, userID string, provider domain.Provider, externalID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET oauth_provider = ?, oauth_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND oauth_provider IS NULL`,
		string(provider), externalID, userID)
	if err != nil {
		return mapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// The guard kept a racing link from replacing an existing one;
		// zero rows on a live account means it is already linked.
		if _, err := r.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *usersRepo) ClearOAuthLink(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET oauth_provider = NULL, oauth_id = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdateName(ctx context.Context, userID string, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdatePicture(ctx context.Context, userID string, picture string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET picture = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		mapStringNull(picture), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdatePreferences(ctx context.Context, userID string, prefs json.RawMessage) error {
	if len(prefs) == 0 {
		prefs = json.RawMessage(`{}`)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET preferences = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(prefs), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdateRole(ctx context.Context, userID string, role domain.Role) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(role), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET email_verified = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow maps zero-row updates to ErrNotFound so callers hitting a
// missing id see the same sentinel as failed lookups.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u             domain.User
		passwordHash  sql.NullString
		role          string
		oauthProvider sql.NullString
		oauthID       sql.NullString
		picture       sql.NullString
		prefs         string
		lastLogin     sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &passwordHash, &u.Name, &role,
		&oauthProvider, &oauthID, &picture, &u.EmailVerified, &prefs,
		&u.CreatedAt, &u.UpdatedAt, &lastLogin,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.PasswordHash = mapNullString(passwordHash)
	u.Role = domain.Role(role)
	u.OAuthProvider = domain.Provider(mapNullString(oauthProvider))
	u.OAuthID = mapNullString(oauthID)
	u.Picture = mapNullString(picture)
	u.Preferences = json.RawMessage(prefs)
	u.LastLogin = mapNullTimePtr(lastLogin)
	return u, nil
}
