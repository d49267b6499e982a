package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/pkg/authsdk"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/slogx"
)

// MFAHandler handles the TOTP endpoints of the session user.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleEnroll handles POST /api/me/totp
//
//	@Summary		Enroll in TOTP
//	@Description	Generates a TOTP secret for the session user. It takes effect once a code is verified.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse	"TOTP secret and otpauth URL"
//	@Failure		401	{object}	authsdk.ErrorResponse		"No valid session"
//	@Failure		409	{object}	authsdk.ErrorResponse		"TOTP already enabled"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/api/me/totp [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	user, ok := userFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	enrollment, err := h.MFAService.EnrollTOTP(ctx, user)
	if err != nil {
		if errors.Is(err, service.ErrTOTPAlreadyEnabled) {
			log.Warn("TOTP already enabled")
			authsdk.ErrTOTPAlreadyEnabled.WriteError(w)
			return
		}
		log.Error("failed to enroll TOTP", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret:  enrollment.Secret,
		QRCode:  enrollment.URL,
		Issuer:  enrollment.Issuer,
		Account: enrollment.Account,
	})
}

// HandleVerify handles POST /api/me/totp/verify
//
//	@Summary		Enable TOTP
//	@Description	Verifies a code against the pending secret and enables TOTP for future logins.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"TOTP code"
//	@Success		204		"TOTP enabled"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Invalid request body"
//	@Failure		401		{object}	authsdk.ErrorResponse			"No valid session or invalid code"
//	@Failure		409		{object}	authsdk.ErrorResponse			"TOTP already enabled or not enrolled"
//	@Router			/api/me/totp/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.handleCode(w, r, h.MFAService.VerifyTOTP)
}

// HandleRemove handles DELETE /api/me/totp
//
//	@Summary		Disable TOTP
//	@Description	Disables TOTP after checking a current code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"TOTP code"
//	@Success		204		"TOTP disabled"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Invalid request body"
//	@Failure		401		{object}	authsdk.ErrorResponse			"No valid session or invalid code"
//	@Failure		409		{object}	authsdk.ErrorResponse			"TOTP not enabled"
//	@Router			/api/me/totp [delete].
func (h *MFAHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	h.handleCode(w, r, h.MFAService.RemoveTOTP)
}

func (h *MFAHandler) handleCode(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID int64, code string) error,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	user, ok := userFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.TOTPCodeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	err := apply(ctx, user.ID, req.Code)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrInvalidTOTPCode):
		log.Warn("invalid TOTP code")
		authsdk.ErrInvalidTOTPCode.WriteError(w)
	case errors.Is(err, service.ErrTOTPAlreadyEnabled):
		authsdk.ErrTOTPAlreadyEnabled.WriteError(w)
	case errors.Is(err, service.ErrTOTPNotEnabled), errors.Is(err, service.ErrTOTPNotEnrolled):
		authsdk.ErrTOTPNotEnabled.WriteError(w)
	default:
		log.Error("TOTP operation failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
