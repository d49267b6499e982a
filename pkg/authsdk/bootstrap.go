package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Bootstrap creates the first administrator. token must match the
// server's BOOTSTRAP_TOKEN.
func (c *SDKClient) Bootstrap(
	ctx context.Context,
	token string,
	req BootstrapRequest,
) (*BootstrapResponse, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/bootstrap", bytes.NewReader(body), map[string]string{
		"Content-Type":      "application/json",
		"X-Bootstrap-Token": token,
	})
	if err != nil {
		return nil, err
	}

	var bootstrapResp BootstrapResponse
	if err := decodeJSON(resp, &bootstrapResp, http.StatusCreated); err != nil {
		return nil, err
	}

	return &bootstrapResp, nil
}
