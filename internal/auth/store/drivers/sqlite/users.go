package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/store"
)

const userColumns = `id, pseudo, email, password_hash, "group", totp_secret, totp_enabled_at, created_at, updated_at`

type usersRepo struct {
	db  dbtx
	now func() time.Time
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u             domain.User
		group         string
		totpSecret    sql.NullString
		totpEnabledAt sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)
	err := row.Scan(
		&u.ID,
		&u.Pseudo,
		&u.Email,
		&u.PasswordHash,
		&group,
		&totpSecret,
		&totpEnabledAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Group = domain.Group(group)
	u.TOTPSecret = mapNullStringPtr(totpSecret)
	u.TOTPEnabledAt = mapNullUnixPtr(totpEnabledAt)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByPseudo(ctx context.Context, pseudo string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE pseudo = ?`, pseudo))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email)))
}

func (r *usersRepo) GetUserByIdentifier(ctx context.Context, identifier string) (domain.User, error) {
	u, err := r.GetUserByPseudo(ctx, identifier)
	if !errors.Is(err, store.ErrNotFound) {
		return u, err
	}
	return r.GetUserByEmail(ctx, identifier)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	group := u.Group
	if group == "" {
		group = domain.GroupMember
	}
	now := r.now().Unix()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (pseudo, email, password_hash, "group", created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Pseudo, strings.TrimSpace(u.Email), u.PasswordHash, string(group), now, now,
	)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return res.LastInsertId()
}

// exec runs a single-row update and reports ErrNotFound when no row matched.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, r.now().Unix(), userID)
}

func (r *usersRepo) UpdateTOTPSecret(ctx context.Context, userID int64, secret string) error {
	return r.exec(ctx,
		`UPDATE users SET totp_secret = ?, totp_enabled_at = NULL, updated_at = ? WHERE id = ?`,
		secret, r.now().Unix(), userID)
}

func (r *usersRepo) EnableTOTP(ctx context.Context, userID int64) error {
	now := r.now().Unix()
	return r.exec(ctx,
		`UPDATE users SET totp_enabled_at = ?, updated_at = ? WHERE id = ? AND totp_secret IS NOT NULL`,
		now, now, userID)
}

func (r *usersRepo) DisableTOTP(ctx context.Context, userID int64) error {
	return r.exec(ctx,
		`UPDATE users SET totp_secret = NULL, totp_enabled_at = NULL, updated_at = ? WHERE id = ?`,
		r.now().Unix(), userID)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, userID)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}
