package store

import (
	"context"
	"errors"

	"github.com/loxya/loxya/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers expose sub-repositories
// so a Tx-scoped Store offers the same surface as the root one.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id int64) (domain.User, error)

	GetUserByPseudo(ctx context.Context, pseudo string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByIdentifier resolves a login identifier, trying the pseudo
	// first and the email second.
	GetUserByIdentifier(ctx context.Context, identifier string) (domain.User, error)

	// CreateUser inserts u and returns the assigned id. Duplicate pseudo or
	// email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) (int64, error)

	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error

	// UpdateTOTPSecret stores a pending secret and clears any enabled
	// timestamp.
	UpdateTOTPSecret(ctx context.Context, userID int64, secret string) error

	EnableTOTP(ctx context.Context, userID int64) error

	// DisableTOTP clears both the secret and the enabled timestamp.
	DisableTOTP(ctx context.Context, userID int64) error

	DeleteUser(ctx context.Context, userID int64) error

	// IsEmpty reports whether no user exists.
	IsEmpty(ctx context.Context) (bool, error)
}
