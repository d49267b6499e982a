package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RequestPasswordReset asks for a reset token to be sent to email. The
// server answers the same way whether or not the address is known.
//
// The token is bound to this client's User-Agent and Accept-Language, so
// ConfirmPasswordReset must be called with the same values.
func (c *SDKClient) RequestPasswordReset(ctx context.Context, email string) error {
	return c.postNoContent(ctx, "/api/password-reset", PasswordResetRequest{Email: email})
}

// ConfirmPasswordReset sets a new password using a reset token.
func (c *SDKClient) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return c.postNoContent(ctx, "/api/password-reset/confirm", PasswordResetConfirmRequest{
		Token:    token,
		Password: newPassword,
	})
}

func (c *SDKClient) postNoContent(ctx context.Context, path string, req any) error {
	if err := Validate(req); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}
