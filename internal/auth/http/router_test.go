package http_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loxya/loxya/internal/auth/domain"
	authhttp "github.com/loxya/loxya/internal/auth/http"
	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/internal/auth/store/drivers/sqlite"
	"github.com/loxya/loxya/pkg/authsdk"
	"github.com/loxya/loxya/pkg/cryptox"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/jwtx"
	"github.com/loxya/loxya/pkg/slogx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const bootstrapToken = "let-me-in"

var generous = httpx.RateLimitConfig{Name: "test", RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}

type mailbox struct {
	mu     sync.Mutex
	tokens []string
}

func (m *mailbox) SendPasswordReset(_ context.Context, _ domain.User, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func (m *mailbox) last(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.tokens)
	return m.tokens[len(m.tokens)-1]
}

type testServer struct {
	URL  string
	Mail *mailbox
	// signerBroken makes the readiness signer check fail.
	signerBroken atomic.Bool
}

func newTestServer(t *testing.T, limits authhttp.RateLimits) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "loxya.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.NewCodec([]byte(strings.Repeat("s", 32)))
	require.NoError(t, err)
	passwords := cryptox.NewPasswordHasher("pepper")

	ts := &testServer{Mail: &mailbox{}}
	sessions := &service.SessionService{Codec: codec, Users: st.Users(), Lifetime: time.Hour}

	router := authhttp.NewRouter("test", st, func() error {
		if ts.signerBroken.Load() {
			return errors.New("no secret")
		}
		return nil
	}, limits, slogx.Discard())
	router.Sessions = sessions
	router.LoginService = &service.LoginService{Store: st, Passwords: passwords, Sessions: sessions}
	router.PasswordResetService = &service.PasswordResetService{
		Store:     st,
		Codec:     codec,
		Passwords: passwords,
		Mailer:    ts.Mail,
	}
	router.MFAService = &service.MFAService{Store: st, Issuer: "Loxya"}
	router.BootstrapService = &service.BootstrapService{Store: st, Passwords: passwords, Token: bootstrapToken}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	ts.URL = srv.URL
	return ts
}

func generousLimits() authhttp.RateLimits {
	return authhttp.RateLimits{Strict: generous, Moderate: generous, Public: generous}
}

func bootstrapAdmin(t *testing.T, client *authsdk.SDKClient) {
	t.Helper()
	_, err := client.Bootstrap(context.Background(), bootstrapToken, authsdk.BootstrapRequest{
		Pseudo:   "admin",
		Email:    "admin@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
}

func TestSessionFlow(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, generousLimits())
	client := authsdk.NewSDKClient(ts.URL)
	client.AcceptLanguage = "fr-FR"
	bootstrapAdmin(t, client)

	t.Run("bootstrap only once", func(t *testing.T) {
		_, err := client.Bootstrap(ctx, bootstrapToken, authsdk.BootstrapRequest{
			Pseudo: "other", Email: "other@example.com", Password: "correct horse",
		})
		require.ErrorIs(t, err, authsdk.ErrBootstrapAlready)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := client.Login(ctx, "admin", "wrong password", "")
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	})

	session, err := client.Login(ctx, "admin@example.com", "correct horse", "")
	require.NoError(t, err)
	require.Equal(t, "admin", session.User().Pseudo)
	require.Equal(t, "admin", session.User().Group)

	t.Run("current user", func(t *testing.T) {
		me, err := session.CurrentUser(ctx)
		require.NoError(t, err)
		require.Equal(t, "admin@example.com", me.Email)
	})

	t.Run("token replayed by another client", func(t *testing.T) {
		other := authsdk.NewSDKClient(ts.URL)
		other.UserAgent = "curl/8.0"
		other.AcceptLanguage = "fr-FR"

		stolen := other.NewSessionFromToken(session.Token(), session.ExpiresAt())
		_, err := stolen.CurrentUser(ctx)
		require.ErrorIs(t, err, authsdk.ErrInvalidToken)
	})

	t.Run("logout keeps the token valid", func(t *testing.T) {
		token := session.Token()
		require.NoError(t, session.Logout(ctx))

		again := client.NewSessionFromToken(token, time.Time{})
		_, err := again.CurrentUser(ctx)
		require.NoError(t, err)
	})
}

func TestSessionCookie(t *testing.T) {
	ts := newTestServer(t, generousLimits())
	client := authsdk.NewSDKClient(ts.URL)
	bootstrapAdmin(t, client)

	do := func(t *testing.T, method, path, body string, cookies ...*http.Cookie) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("User-Agent", authsdk.DefaultUserAgent)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}

		noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		resp, err := noRedirect.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := do(t, http.MethodPost, "/api/session", `{"identifier":"admin","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "Authorization" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.Equal(t, "/", cookie.Path)
	require.False(t, cookie.HttpOnly)

	t.Run("cookie is ignored on api requests", func(t *testing.T) {
		resp := do(t, http.MethodGet, "/api/session", "", cookie)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
	})

	t.Run("logout redirects and clears the cookie", func(t *testing.T) {
		resp := do(t, http.MethodGet, "/logout", "", cookie)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, "/login", resp.Header.Get("Location"))

		var cleared *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "Authorization" {
				cleared = c
			}
		}
		require.NotNil(t, cleared)
		require.Empty(t, cleared.Value)
		require.Less(t, cleared.MaxAge, 0)
	})

	t.Run("unknown body field", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/session", `{"identifier":"admin","password":"x","admin":true}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		require.Contains(t, string(body), authsdk.ErrorCodeInvalidRequest)
	})

	t.Run("validation error", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/session", `{"identifier":"","password":"x"}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		require.Contains(t, string(body), authsdk.ErrorCodeValidation)
		require.Contains(t, string(body), "identifier")
	})
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, generousLimits())
	client := authsdk.NewSDKClient(ts.URL)
	bootstrapAdmin(t, client)

	require.NoError(t, client.RequestPasswordReset(ctx, "nobody@example.com"))
	require.Zero(t, ts.Mail.count())

	require.NoError(t, client.RequestPasswordReset(ctx, "admin@example.com"))
	token := ts.Mail.last(t)

	other := authsdk.NewSDKClient(ts.URL)
	other.UserAgent = "somebody else"
	err := other.ConfirmPasswordReset(ctx, token, "a new password")
	require.ErrorIs(t, err, authsdk.ErrInvalidResetToken)

	session, err := client.Login(ctx, "admin", "correct horse", "")
	require.NoError(t, err)
	err = client.ConfirmPasswordReset(ctx, session.Token(), "a new password")
	require.ErrorIs(t, err, authsdk.ErrInvalidResetToken, "session tokens cannot reset passwords")

	require.NoError(t, client.ConfirmPasswordReset(ctx, token, "a new password"))

	err = client.ConfirmPasswordReset(ctx, token, "yet another password")
	require.ErrorIs(t, err, authsdk.ErrInvalidResetToken, "reset tokens are single use")

	_, err = client.Login(ctx, "admin", "correct horse", "")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	_, err = client.Login(ctx, "admin", "a new password", "")
	require.NoError(t, err)
}

func TestTOTPFlow(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, generousLimits())
	client := authsdk.NewSDKClient(ts.URL)
	bootstrapAdmin(t, client)

	session, err := client.Login(ctx, "admin", "correct horse", "")
	require.NoError(t, err)

	enrollment, err := session.EnrollTOTP(ctx)
	require.NoError(t, err)
	require.Equal(t, "Loxya", enrollment.Issuer)
	require.Contains(t, enrollment.QRCode, "otpauth://totp/")

	require.ErrorIs(t, session.VerifyTOTP(ctx, "000000"), authsdk.ErrInvalidTOTPCode)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, session.VerifyTOTP(ctx, code))

	_, err = session.EnrollTOTP(ctx)
	require.ErrorIs(t, err, authsdk.ErrTOTPAlreadyEnabled)

	_, err = client.Login(ctx, "admin", "correct horse", "")
	require.ErrorIs(t, err, authsdk.ErrTOTPRequired)

	withCode, err := client.Login(ctx, "admin", "correct horse", code)
	require.NoError(t, err)
	require.True(t, withCode.User().TOTPEnabled)

	require.NoError(t, withCode.RemoveTOTP(ctx, code))
	require.ErrorIs(t, withCode.RemoveTOTP(ctx, code), authsdk.ErrTOTPNotEnabled)
}

func TestRequireSession(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, generousLimits())
	client := authsdk.NewSDKClient(ts.URL)

	anonymous := client.NewSessionFromToken("not.a.jwt", time.Time{})
	_, err := anonymous.EnrollTOTP(ctx)
	require.ErrorIs(t, err, authsdk.ErrInvalidToken)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestLoginRateLimit(t *testing.T) {
	ctx := context.Background()
	limits := generousLimits()
	limits.Strict = httpx.RateLimitConfig{Name: "strict", RequestsPerWindow: 2, Window: time.Hour, Burst: 2}
	ts := newTestServer(t, limits)
	client := authsdk.NewSDKClient(ts.URL)

	for range 2 {
		_, err := client.Login(ctx, "nobody", "password", "")
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	}

	_, err := client.Login(ctx, "nobody", "password", "")
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeRateLimited, apiErr.Code)
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, generousLimits())
	client := authsdk.NewSDKClient(ts.URL)

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)

	ts.signerBroken.Store(true)
	_, err = client.GetReadiness(ctx)
	require.ErrorIs(t, err, authsdk.ErrServiceNotAvailable)

	_, err = client.Login(ctx, "nobody", "password", "")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "loxya_login_attempts_total")
}
