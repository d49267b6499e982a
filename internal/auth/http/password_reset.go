package http

import (
	"errors"
	"net/http"

	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/pkg/authsdk"
	"github.com/loxya/loxya/pkg/slogx"
)

type PasswordResetHandler struct {
	PasswordResetService *service.PasswordResetService
}

// HandleRequest handles POST /api/password-reset
//
//	@Summary		Request a password reset
//	@Description	Sends a reset token when the email belongs to an account. The response is the same either way.
//	@Description	The token is bound to the User-Agent and Accept-Language of this request.
//	@Tags			Password Reset
//	@Accept			json
//	@Param			request	body	authsdk.PasswordResetRequest	true	"Account email"
//	@Success		204		"Request accepted"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Invalid request body"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limit exceeded"
//	@Router			/api/password-reset [post].
func (h *PasswordResetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.PasswordResetService.Request(r.Context(), r, req.Email); err != nil {
		// Delivery failures stay internal; the caller learns nothing about the account.
		slogx.FromContext(r.Context()).Error("password reset request failed", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleConfirm handles POST /api/password-reset/confirm
//
//	@Summary		Confirm a password reset
//	@Description	Sets a new password using a reset token from the same client.
//	@Tags			Password Reset
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.PasswordResetConfirmRequest	true	"Token and new password"
//	@Success		204		"Password changed"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid or expired token, or invalid body"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/api/password-reset/confirm [post].
func (h *PasswordResetHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetConfirmRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	err := h.PasswordResetService.Confirm(r.Context(), r, req.Token, req.Password)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrInvalidResetToken):
		authsdk.ErrInvalidResetToken.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("password reset confirm failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
