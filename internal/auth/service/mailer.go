package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/pkg/slogx"
)

// Mailer delivers password reset tokens to their owner.
type Mailer interface {
	SendPasswordReset(ctx context.Context, user domain.User, token string, expiresAt time.Time) error
}

// LogMailer records deliveries in the log instead of sending mail. The
// token itself is only written when ShowToken is set.
type LogMailer struct {
	ShowToken bool
}

func (m LogMailer) SendPasswordReset(ctx context.Context, user domain.User, token string, expiresAt time.Time) error {
	attrs := []any{
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
		slog.Time("expires_at", expiresAt),
	}
	if m.ShowToken {
		attrs = append(attrs, slog.String("token", token))
	}
	slogx.FromContext(ctx).Info("password reset requested", attrs...)
	return nil
}
