package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/loxya/loxya/internal/auth/store"
	"github.com/loxya/loxya/pkg/cryptox"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/jwtx"
	"github.com/loxya/loxya/pkg/slogx"
)

var (
	ErrInvalidResetToken = errors.New("invalid_reset_token")
	// ErrResetTokenUsed means the password changed after the token was
	// issued, so the token has already been spent.
	ErrResetTokenUsed = errors.New("reset_token_used")
)

// claimPasswordStamp carries cryptox.PasswordStamp of the hash the token was
// issued against.
const claimPasswordStamp = "pws"

// resetSchema accepts a subject payload plus the password stamp.
func resetSchema(p jwtx.Payload) error {
	stamp, ok := p[claimPasswordStamp].(string)
	if !ok || stamp == "" {
		return errors.New("pws must be a non-empty string")
	}
	return jwtx.SubjectSchema(subjectOf(p))
}

func subjectOf(p jwtx.Payload) jwtx.Payload {
	subject := maps.Clone(p)
	delete(subject, claimPasswordStamp)
	return subject
}

// PasswordResetService issues short-lived password-reset tokens and
// consumes them. A reset token is bound to the client that asked for it
// and to the password it replaces, so it works once.
type PasswordResetService struct {
	Store     store.Store
	Codec     *jwtx.Codec
	Passwords *cryptox.PasswordHasher
	Mailer    Mailer
	Lifetime  time.Duration
}

func (s *PasswordResetService) lifetime() time.Duration {
	if s.Lifetime > 0 {
		return s.Lifetime
	}
	return jwtx.DefaultPasswordResetLifetime
}

// Request mails a reset token when email belongs to a user. Unknown
// addresses succeed silently.
func (s *PasswordResetService) Request(ctx context.Context, r *http.Request, email string) error {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		l.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset: lookup user: %w", err)
	}

	expiresAt := s.Codec.Now().Add(s.lifetime())
	payload := jwtx.SubjectPayload(user.ID)
	payload[claimPasswordStamp] = cryptox.PasswordStamp(user.PasswordHash)

	token, err := s.Codec.Generate(jwtx.ScopePasswordReset, expiresAt, payload, httpx.Fingerprint(r))
	if err != nil {
		return fmt.Errorf("password reset: sign token: %w", err)
	}
	SessionsIssued.WithLabelValues(string(jwtx.ScopePasswordReset)).Inc()

	if err := s.Mailer.SendPasswordReset(ctx, user, token, expiresAt); err != nil {
		l.Error("failed to deliver password reset", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return fmt.Errorf("password reset: deliver: %w", err)
	}
	return nil
}

// Confirm sets a new password for the subject of token. The token must
// carry the password-reset scope and the fingerprint of r, and the password
// must not have changed since it was issued.
func (s *PasswordResetService) Confirm(ctx context.Context, r *http.Request, token, newPassword string) error {
	l := slogx.FromContext(ctx)

	payload, err := s.Codec.Decode(jwtx.ScopePasswordReset, token, httpx.Fingerprint(r), resetSchema)
	if err != nil {
		l.Info("password reset token rejected", slog.String("reason", jwtx.Reason(err)))
		return fmt.Errorf("%w: %w", ErrInvalidResetToken, err)
	}
	id, err := jwtx.SubjectID(subjectOf(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResetToken, err)
	}
	stamp := payload[claimPasswordStamp].(string)

	hash, err := s.Passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("password reset: hash: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrInvalidResetToken, ErrSubjectNotFound)
		}
		if err != nil {
			return fmt.Errorf("password reset: load user: %w", err)
		}

		if !cryptox.TokensEqual(stamp, cryptox.PasswordStamp(user.PasswordHash)) {
			return fmt.Errorf("%w: %w", ErrInvalidResetToken, ErrResetTokenUsed)
		}

		if err := tx.Users().UpdatePasswordHash(ctx, id, hash); err != nil {
			return fmt.Errorf("password reset: update: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrResetTokenUsed) {
		l.Info("password reset token rejected", slog.String("reason", "reset_token_used"), slog.Int64("user_id", id))
	}
	if err != nil {
		return err
	}

	l.Info("password reset completed", slog.Int64("user_id", id))
	return nil
}
