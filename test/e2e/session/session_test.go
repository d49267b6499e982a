//go:build e2e

package session_test

import (
	"errors"
	"testing"

	"github.com/loxya/loxya/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	client := authsdk.NewSDKClient(setupContainer(t))

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)

	health, err = client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
}

func TestBootstrapOnce(t *testing.T) {
	client := authsdk.NewSDKClient(setupContainer(t))
	bootstrapAdmin(t, client)

	_, err := client.Bootstrap(t.Context(), bootstrapToken, authsdk.BootstrapRequest{
		Pseudo:   "second",
		Email:    "second@example.com",
		Password: adminPassword,
	})
	require.ErrorIs(t, err, authsdk.ErrBootstrapAlready)
}

func TestLoginAndSession(t *testing.T) {
	client := authsdk.NewSDKClient(setupContainer(t))
	adminID := bootstrapAdmin(t, client)

	t.Run("wrong password", func(t *testing.T) {
		_, err := client.Login(t.Context(), adminPseudo, "wrong-password", "")
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	})

	t.Run("login by email", func(t *testing.T) {
		session, err := client.Login(t.Context(), adminEmail, adminPassword, "")
		require.NoError(t, err)
		require.NotEmpty(t, session.Token())
		require.Equal(t, adminID, session.User().ID)
		require.Equal(t, "admin", session.User().Group)

		user, err := session.CurrentUser(t.Context())
		require.NoError(t, err)
		require.Equal(t, adminPseudo, user.Pseudo)
	})

	t.Run("token bound to client fingerprint", func(t *testing.T) {
		session, err := client.Login(t.Context(), adminPseudo, adminPassword, "")
		require.NoError(t, err)

		other := authsdk.NewSDKClient(client.BaseURL)
		other.UserAgent = "another-browser/2"
		stolen := other.NewSessionFromToken(session.Token(), session.ExpiresAt())

		_, err = stolen.CurrentUser(t.Context())
		require.ErrorIs(t, err, authsdk.ErrInvalidToken)

		// The original client keeps working.
		_, err = session.CurrentUser(t.Context())
		require.NoError(t, err)
	})

	t.Run("tampered token", func(t *testing.T) {
		session, err := client.Login(t.Context(), adminPseudo, adminPassword, "")
		require.NoError(t, err)

		forged := client.NewSessionFromToken(session.Token()+"x", session.ExpiresAt())
		_, err = forged.CurrentUser(t.Context())
		require.ErrorIs(t, err, authsdk.ErrInvalidToken)
	})

	t.Run("logout", func(t *testing.T) {
		session, err := client.Login(t.Context(), adminPseudo, adminPassword, "")
		require.NoError(t, err)

		require.NoError(t, session.Logout(t.Context()))
		require.Empty(t, session.Token())
	})
}

func TestLoginRateLimited(t *testing.T) {
	client := authsdk.NewSDKClient(setupContainerWithDefaultRateLimits(t))

	// The strict profile allows 5 attempts per minute per IP.
	var lastErr error
	for i := range 6 {
		_, err := client.Login(t.Context(), "nobody", "wrong-password", "")
		require.Error(t, err)
		if i < 5 {
			require.False(t, isRateLimited(err), "request %d should not be rate limited", i+1)
		}
		lastErr = err
	}
	require.True(t, isRateLimited(lastErr), "6th login should be rate limited, got: %v", lastErr)
}

func isRateLimited(err error) bool {
	var apiErr *authsdk.APIError
	return errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeRateLimited
}
