package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/store"
	"github.com/loxya/loxya/pkg/cryptox"
	"github.com/loxya/loxya/pkg/slogx"
	"github.com/pquerna/otp/totp"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrTOTPRequired       = errors.New("totp_required")
)

// dummyHash is verified against when the identifier is unknown so both
// failure paths cost one argon2 evaluation.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$c29tZXNhbHRzb21lc2FsdA$2H4hRLXwPp0q4zl3pG+Y3cU1v8mJ8b0Q8h0r0yWm3bM"

type LoginService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
	Sessions  *SessionService
}

// Login checks the credentials and, when the account has TOTP enabled,
// the one-time code. On success it issues a session bound to r.
func (s *LoginService) Login(
	ctx context.Context,
	r *http.Request,
	identifier, password, otpCode string,
) (domain.User, IssuedSession, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		_ = s.Passwords.Verify(password, dummyHash)
		LoginAttempts.WithLabelValues("unknown_user").Inc()
		l.Info("login rejected", slog.String("reason", "unknown_user"))
		return domain.User{}, IssuedSession{}, ErrInvalidCredentials
	}
	if err != nil {
		LoginAttempts.WithLabelValues("error").Inc()
		return domain.User{}, IssuedSession{}, fmt.Errorf("login: lookup user: %w", err)
	}

	if err := s.Passwords.Verify(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
		LoginAttempts.WithLabelValues("bad_password").Inc()
		l.Info("login rejected", slog.String("reason", "bad_password"), slog.Int64("user_id", user.ID))
		return domain.User{}, IssuedSession{}, ErrInvalidCredentials
	}

	if user.TOTPEnabled() {
		if otpCode == "" {
			LoginAttempts.WithLabelValues("totp_required").Inc()
			return domain.User{}, IssuedSession{}, ErrTOTPRequired
		}
		if !totp.Validate(otpCode, *user.TOTPSecret) {
			LoginAttempts.WithLabelValues("bad_totp").Inc()
			l.Info("login rejected", slog.String("reason", "bad_totp"), slog.Int64("user_id", user.ID))
			return domain.User{}, IssuedSession{}, ErrInvalidTOTPCode
		}
	}

	issued, err := s.Sessions.IssueSession(r, user)
	if err != nil {
		LoginAttempts.WithLabelValues("error").Inc()
		return domain.User{}, IssuedSession{}, err
	}

	LoginAttempts.WithLabelValues("success").Inc()
	return user, issued, nil
}
