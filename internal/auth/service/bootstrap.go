package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/store"
	"github.com/loxya/loxya/pkg/cryptox"
	"github.com/loxya/loxya/pkg/slogx"
)

var (
	ErrBootstrapAlready             = errors.New("system already bootstrapped")
	ErrBootstrapUnauthorized        = errors.New("unauthorized bootstrap attempt")
	ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin user")
)

type BootstrapService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
	// Token guards the endpoint. Empty disables bootstrapping.
	Token string
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// Bootstrap creates the first admin account. It only works while the user
// table is empty and the caller presents the configured token.
func (s *BootstrapService) Bootstrap(ctx context.Context, token string, req domain.BootstrapData) (int64, error) {
	l := slogx.FromContext(ctx)

	if s.Token == "" || !cryptox.TokensEqual(token, s.Token) {
		l.Warn("unauthorized bootstrap attempt",
			slog.String("token_fingerprint", cryptox.FingerprintToken(token)),
		)
		return 0, ErrBootstrapUnauthorized
	}

	hash, err := s.Passwords.Hash(req.Password)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return 0, ErrBootstrapFailedToCreateAdmin
	}

	var adminID int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Users().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrBootstrapAlready
		}

		adminID, err = tx.Users().CreateUser(ctx, domain.User{
			Pseudo:       req.Pseudo,
			Email:        req.Email,
			PasswordHash: hash,
			Group:        domain.GroupAdmin,
		})
		if err != nil {
			l.Error("failed to create admin user", slog.Any("error", err))
			return ErrBootstrapFailedToCreateAdmin
		}
		return nil
	})
	if errors.Is(err, ErrBootstrapAlready) {
		l.Warn("attempted bootstrap on already-bootstrapped system")
		return 0, err
	}
	if err != nil {
		if !errors.Is(err, ErrBootstrapFailedToCreateAdmin) {
			l.Error("bootstrap transaction failed", slog.Any("error", err))
		}
		return 0, ErrBootstrapFailedToCreateAdmin
	}

	l.Info("successfully bootstrapped system", slog.Int64("admin_user_id", adminID))
	return adminID, nil
}
