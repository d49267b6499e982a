package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/loxya/loxya/pkg/cryptox"
	"github.com/loxya/loxya/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "old password")
	mailer := &recordingMailer{}

	svc := &PasswordResetService{
		Store:     env.Store,
		Codec:     env.Codec,
		Passwords: env.Passwords,
		Mailer:    mailer,
	}
	login := newLoginService(env)

	t.Run("unknown email is silent", func(t *testing.T) {
		require.NoError(t, svc.Request(ctx, clientRequest(http.MethodPost, "/api/password-reset"), "nobody@example.com"))
		require.Empty(t, mailer.sent)
	})

	t.Run("token delivered with default lifetime", func(t *testing.T) {
		require.NoError(t, svc.Request(ctx, clientRequest(http.MethodPost, "/api/password-reset"), "alice@example.com"))

		sent := mailer.last(t)
		require.Equal(t, alice.ID, sent.User.ID)
		require.Equal(t, testStart.Add(30*time.Minute), sent.ExpiresAt)
	})

	t.Run("session token cannot reset a password", func(t *testing.T) {
		issued, err := env.Sessions.IssueSession(clientRequest(http.MethodPost, "/api/session"), alice)
		require.NoError(t, err)

		err = svc.Confirm(ctx, clientRequest(http.MethodPost, "/api/password-reset/confirm"), issued.Token, "new password")
		require.ErrorIs(t, err, ErrInvalidResetToken)
		require.ErrorIs(t, err, jwtx.ErrWrongScope)
	})

	t.Run("reset token cannot authenticate", func(t *testing.T) {
		req := clientRequest(http.MethodGet, "/api/session")
		req.Header.Set("Authorization", "Bearer "+mailer.last(t).Token)
		require.Nil(t, env.Sessions.GetUser(req))
	})

	t.Run("other client cannot use the token", func(t *testing.T) {
		req := clientRequest(http.MethodPost, "/api/password-reset/confirm")
		req.Header.Set("User-Agent", "another browser")

		err := svc.Confirm(ctx, req, mailer.last(t).Token, "new password")
		require.ErrorIs(t, err, jwtx.ErrFingerprintMismatch)
	})

	t.Run("confirm sets the new password", func(t *testing.T) {
		err := svc.Confirm(ctx, clientRequest(http.MethodPost, "/api/password-reset/confirm"), mailer.last(t).Token, "new password")
		require.NoError(t, err)

		_, _, err = login.Login(ctx, clientRequest(http.MethodPost, "/api/session"), "alice", "old password", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = login.Login(ctx, clientRequest(http.MethodPost, "/api/session"), "alice", "new password", "")
		require.NoError(t, err)
	})

	t.Run("token works only once", func(t *testing.T) {
		used := mailer.last(t).Token

		err := svc.Confirm(ctx, clientRequest(http.MethodPost, "/api/password-reset/confirm"), used, "another password")
		require.ErrorIs(t, err, ErrInvalidResetToken)
		require.ErrorIs(t, err, ErrResetTokenUsed)

		_, _, err = login.Login(ctx, clientRequest(http.MethodPost, "/api/session"), "alice", "new password", "")
		require.NoError(t, err, "replay must not change the password")
	})

	t.Run("sibling tokens die with the first use", func(t *testing.T) {
		req := clientRequest(http.MethodPost, "/api/password-reset")
		require.NoError(t, svc.Request(ctx, req, "alice@example.com"))
		first := mailer.last(t).Token
		env.Clock.Advance(time.Second)
		require.NoError(t, svc.Request(ctx, req, "alice@example.com"))
		second := mailer.last(t).Token
		require.NotEqual(t, first, second)

		confirm := clientRequest(http.MethodPost, "/api/password-reset/confirm")
		require.NoError(t, svc.Confirm(ctx, confirm, second, "third password"))

		err := svc.Confirm(ctx, confirm, first, "fourth password")
		require.ErrorIs(t, err, ErrResetTokenUsed)
	})

	t.Run("token without password stamp", func(t *testing.T) {
		forged, err := env.Codec.Generate(jwtx.ScopePasswordReset, env.Clock.Now().Add(time.Minute),
			jwtx.SubjectPayload(alice.ID), cryptox.FingerprintClient(testUA, testLang))
		require.NoError(t, err)

		err = svc.Confirm(ctx, clientRequest(http.MethodPost, "/api/password-reset/confirm"), forged, "x password")
		require.ErrorIs(t, err, ErrInvalidResetToken)
		require.ErrorIs(t, err, jwtx.ErrInvalidPayload)
	})

	t.Run("expired token", func(t *testing.T) {
		require.NoError(t, svc.Request(ctx, clientRequest(http.MethodPost, "/api/password-reset"), "alice@example.com"))
		env.Clock.Advance(31 * time.Minute)

		err := svc.Confirm(ctx, clientRequest(http.MethodPost, "/api/password-reset/confirm"), mailer.last(t).Token, "x")
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}
