package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/store"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/jwtx"
	"github.com/loxya/loxya/pkg/slogx"
)

var (
	ErrTokenNotFound   = errors.New("session: no token in request")
	ErrSubjectNotFound = errors.New("session: subject not found")
)

// UserFinder resolves session subjects.
type UserFinder interface {
	GetUserByID(ctx context.Context, id int64) (domain.User, error)
}

// IssuedSession is the result of a successful login.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
	// Cookie to set on the response, nil in headless mode.
	Cookie *http.Cookie
}

// SessionService issues session tokens and resolves the user behind a
// request. Tokens are bound to the client fingerprint of the request that
// obtained them and are never stored server side.
type SessionService struct {
	Codec *jwtx.Codec
	Users UserFinder
	// Clock defaults to the codec clock.
	Clock    jwtx.Clock
	Lifetime time.Duration

	HeaderName string
	CookieName string
	// Secure marks cookies Secure and SameSite=None.
	Secure bool
	// Headless disables cookies entirely.
	Headless bool
	// IsAPIRequest decides whether the cookie transport is ignored.
	IsAPIRequest httpx.RequestClassifier
}

func (s *SessionService) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return s.Codec.Now()
}

func (s *SessionService) lifetime() time.Duration {
	if s.Lifetime > 0 {
		return s.Lifetime
	}
	return jwtx.DefaultSessionLifetime
}

func (s *SessionService) headerName() string {
	if s.HeaderName != "" {
		return s.HeaderName
	}
	return httpx.DefaultAuthHeader
}

func (s *SessionService) cookieName() string {
	if s.CookieName != "" {
		return s.CookieName
	}
	return httpx.DefaultAuthHeader
}

func (s *SessionService) isAPIRequest(r *http.Request) bool {
	if s.IsAPIRequest != nil {
		return s.IsAPIRequest(r)
	}
	return httpx.APIPrefixClassifier("/api")(r)
}

// ExtractToken returns the raw token carried by r. The header is tried
// first. The cookie is only consulted for non-API requests.
func (s *SessionService) ExtractToken(r *http.Request) (string, error) {
	if token, ok := httpx.BearerFromHeader(r, s.headerName()); ok {
		return token, nil
	}
	if s.isAPIRequest(r) {
		return "", ErrTokenNotFound
	}
	if token, ok := httpx.TokenFromCookie(r, s.cookieName()); ok {
		return token, nil
	}
	return "", ErrTokenNotFound
}

// Authenticate resolves the user behind r or explains why it cannot.
func (s *SessionService) Authenticate(r *http.Request) (domain.User, error) {
	token, err := s.ExtractToken(r)
	if err != nil {
		return domain.User{}, err
	}

	payload, err := s.Codec.Decode(jwtx.ScopeAuth, token, httpx.Fingerprint(r), jwtx.SubjectSchema)
	if err != nil {
		return domain.User{}, err
	}

	id, err := jwtx.SubjectID(payload)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.Users.GetUserByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: user %d", ErrSubjectNotFound, id)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("session: load user %d: %w", id, err)
	}
	return user, nil
}

// GetUser returns the authenticated user of r, or nil. Failures are logged
// at debug level and counted, never returned.
func (s *SessionService) GetUser(r *http.Request) *domain.User {
	user, err := s.Authenticate(r)
	if err != nil {
		reason := failureReason(err)
		SessionAuthFailures.WithLabelValues(reason).Inc()
		if !errors.Is(err, ErrTokenNotFound) {
			slogx.FromContext(r.Context()).Debug("session rejected",
				"reason", reason,
				"error", err,
			)
		}
		return nil
	}
	return &user
}

// IssueSession signs a session token for user bound to the fingerprint of r.
func (s *SessionService) IssueSession(r *http.Request, user domain.User) (IssuedSession, error) {
	expiresAt := s.now().Add(s.lifetime())

	token, err := s.Codec.Generate(jwtx.ScopeAuth, expiresAt, jwtx.SubjectPayload(user.ID), httpx.Fingerprint(r))
	if err != nil {
		return IssuedSession{}, fmt.Errorf("session: sign token: %w", err)
	}
	SessionsIssued.WithLabelValues(string(jwtx.ScopeAuth)).Inc()

	slogx.FromContext(r.Context()).Info("session issued",
		"user_id", strconv.FormatInt(user.ID, 10),
		"expires_at", expiresAt.UTC().Format(time.RFC3339),
	)

	issued := IssuedSession{Token: token, ExpiresAt: expiresAt}
	if !s.Headless {
		issued.Cookie = s.cookie(token)
	}
	return issued, nil
}

// ClearSession returns the cookie that removes the session cookie, or nil
// in headless mode. Issued tokens stay valid until they expire.
func (s *SessionService) ClearSession() *http.Cookie {
	if s.Headless {
		return nil
	}
	c := s.cookie("")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

// cookie describes a session cookie. It has no Expires so browsers drop it
// with the session, while the token keeps its own expiry. HttpOnly is off
// because the web client reads it.
func (s *SessionService) cookie(value string) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     s.cookieName(),
		Value:    value,
		Path:     "/",
		Secure:   s.Secure,
		HttpOnly: false,
		SameSite: sameSite,
	}
}
