package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/pkg/authsdk"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/slogx"
)

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP handles the bootstrap endpoint for initial system setup.
//
//	@Summary		Bootstrap the service
//	@Description	Creates the first admin user. Only available when a bootstrap token is configured and no user exists yet.
//	@Tags			Bootstrap
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string							true	"Bootstrap token for authorization"
//	@Param			request				body		authsdk.BootstrapRequest		true	"First administrator"
//	@Success		201					{object}	authsdk.BootstrapResponse		"Admin user created"
//	@Failure		400					{object}	authsdk.ValidationErrorResponse	"Invalid request body or validation failed"
//	@Failure		401					{object}	authsdk.ErrorResponse			"Missing or invalid bootstrap token"
//	@Failure		404					{object}	authsdk.ErrorResponse			"Bootstrap not enabled (no token configured)"
//	@Failure		409					{object}	authsdk.ErrorResponse			"Already bootstrapped"
//	@Failure		500					{object}	authsdk.ErrorResponse			"Failed to create admin user"
//	@Router			/api/bootstrap [post].
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	if h.BootstrapService.Token == "" {
		authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "bootstrap endpoint is not enabled").WriteError(w)
		return
	}

	token := r.Header.Get("X-Bootstrap-Token")
	if token == "" {
		authsdk.NewAPIError(
			http.StatusUnauthorized,
			authsdk.ErrorCodeUnauthorized,
			"bootstrap token is required in X-Bootstrap-Token header",
		).WriteError(w)
		return
	}

	var req authsdk.BootstrapRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	l.Info("starting to bootstrap")
	adminUserID, err := h.BootstrapService.Bootstrap(r.Context(), token, domain.BootstrapData{
		Pseudo:   strings.TrimSpace(req.Pseudo),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBootstrapAlready):
			authsdk.ErrBootstrapAlready.WriteError(w)
		case errors.Is(err, service.ErrBootstrapUnauthorized):
			authsdk.ErrBootstrapUnauthorized.WriteError(w)
		default:
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, authsdk.BootstrapResponse{AdminUserID: adminUserID})
}
