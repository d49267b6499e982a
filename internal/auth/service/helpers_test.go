package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/store/drivers/sqlite"
	"github.com/loxya/loxya/pkg/cryptox"
	"github.com/loxya/loxya/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte(strings.Repeat("k3y-", 10))
	testStart  = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

const (
	testUA   = "Mozilla/5.0 (X11; Linux x86_64) Firefox/126.0"
	testLang = "fr-FR,fr;q=0.9"
)

type testEnv struct {
	Store     *sqlite.Store
	Clock     *jwtx.ManualClock
	Codec     *jwtx.Codec
	Passwords *cryptox.PasswordHasher
	Sessions  *SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := jwtx.NewManualClock(testStart)
	codec, err := jwtx.NewCodec(testSecret, jwtx.WithClock(clock))
	require.NoError(t, err)

	return &testEnv{
		Store:     st,
		Clock:     clock,
		Codec:     codec,
		Passwords: cryptox.NewPasswordHasher("test-pepper"),
		Sessions: &SessionService{
			Codec:    codec,
			Users:    st.Users(),
			Lifetime: 12 * time.Hour,
		},
	}
}

func (e *testEnv) createUser(t *testing.T, pseudo, password string) domain.User {
	t.Helper()
	ctx := context.Background()

	hash, err := e.Passwords.Hash(password)
	require.NoError(t, err)

	id, err := e.Store.Users().CreateUser(ctx, domain.User{
		Pseudo:       pseudo,
		Email:        pseudo + "@example.com",
		PasswordHash: hash,
	})
	require.NoError(t, err)

	u, err := e.Store.Users().GetUserByID(ctx, id)
	require.NoError(t, err)
	return u
}

// clientRequest builds a request carrying the standard test client headers.
func clientRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("User-Agent", testUA)
	req.Header.Set("Accept-Language", testLang)
	return req
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, vec.WithLabelValues(label).Write(&m))
	return m.GetCounter().GetValue()
}

type sentReset struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentReset
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, user domain.User, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentReset{User: user, Token: token, ExpiresAt: expiresAt})
	return nil
}

func (m *recordingMailer) last(t *testing.T) sentReset {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}
