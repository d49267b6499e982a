package authsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrSessionExpired is returned locally, without a round trip, once the
// session token is past its expiry. Sessions cannot be refreshed; log in again.
var ErrSessionExpired = errors.New("authsdk: session expired")

// Session represents an authenticated Loxya session.
type Session struct {
	client *SDKClient

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	user      *UserResponse
}

func newSession(client *SDKClient, resp *SessionResponse) *Session {
	user := resp.User
	return &Session{
		client:    client,
		token:     resp.Token,
		expiresAt: resp.ExpiresAt,
		user:      &user,
	}
}

// Token returns the session token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ExpiresAt returns the token expiry.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// User returns the user captured at login or by the last CurrentUser call.
func (s *Session) User() *UserResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) validToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", ErrSessionExpired
	}
	// A zero expiry means unknown; let the server decide.
	if !s.expiresAt.IsZero() && !time.Now().Before(s.expiresAt) {
		return "", ErrSessionExpired
	}
	return s.token, nil
}

// CurrentUser fetches the user behind the session.
func (s *Session) CurrentUser(ctx context.Context) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/session", nil, nil)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()

	return &user, nil
}

// Logout ends the session on this client. Session tokens are stateless, so
// the token itself stays valid until it expires.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.client.doRequest(ctx, http.MethodDelete, "/api/session", nil, nil)
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	return nil
}
