package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// EnrollTOTP starts TOTP enrollment for the session user. The secret only
// becomes active after VerifyTOTP.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/api/me/totp", nil, nil)
	if err != nil {
		return nil, err
	}

	var enrollResp TOTPEnrollResponse
	if err := decodeJSON(resp, &enrollResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &enrollResp, nil
}

// VerifyTOTP completes enrollment with a code from the authenticator app.
func (s *Session) VerifyTOTP(ctx context.Context, code string) error {
	return s.sendTOTPCode(ctx, http.MethodPost, "/api/me/totp/verify", code)
}

// RemoveTOTP disables two-factor authentication. A current code is required.
func (s *Session) RemoveTOTP(ctx context.Context, code string) error {
	return s.sendTOTPCode(ctx, http.MethodDelete, "/api/me/totp", code)
}

func (s *Session) sendTOTPCode(ctx context.Context, method, path, code string) error {
	req := TOTPCodeRequest{Code: code}
	if err := Validate(req); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, method, path, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}
