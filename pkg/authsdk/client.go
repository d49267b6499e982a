package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultUserAgent is sent when SDKClient.UserAgent is empty.
const DefaultUserAgent = "loxya-authsdk/1"

// SDKClient is a client for the Loxya session API.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent and AcceptLanguage are sent on every request. Sessions are
	// bound to both values, so they must not change between Login and the
	// calls made with the resulting Session.
	UserAgent      string
	AcceptLanguage string
}

// NewSDKClient creates a new client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: DefaultUserAgent,
	}
}

// Login authenticates with a pseudo or email and returns a Session.
// otp may be empty for accounts without two-factor authentication; when it
// is required the returned error matches ErrTOTPRequired.
func (c *SDKClient) Login(ctx context.Context, identifier, password, otp string) (*Session, error) {
	req := LoginRequest{Identifier: identifier, Password: password, OTP: otp}
	if err := Validate(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/session", bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var sessResp SessionResponse
	if err := decodeJSON(resp, &sessResp, http.StatusOK); err != nil {
		return nil, err
	}

	return newSession(c, &sessResp), nil
}

// NewSessionFromToken wraps an existing session token, for example one
// kept from an earlier Login. The user is unknown until CurrentUser is called.
func (c *SDKClient) NewSessionFromToken(token string, expiresAt time.Time) *Session {
	return &Session{
		client:    c,
		token:     token,
		expiresAt: expiresAt,
	}
}
