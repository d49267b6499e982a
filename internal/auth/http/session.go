package http

import (
	"errors"
	"net/http"

	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/pkg/authsdk"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/slogx"
)

// SessionHandler serves login, current user and logout.
type SessionHandler struct {
	LoginService *service.LoginService
	Sessions     *service.SessionService
	// LoginPath is where GET /logout redirects.
	LoginPath string
}

// HandleLogin handles POST /api/session
//
//	@Summary		Open a session
//	@Description	Checks the credentials (pseudo or email) and, when enabled, the TOTP code. The returned token is bound to the User-Agent and Accept-Language of this request.
//	@Description	Unless the service runs headless, the token is also set as a cookie for page requests.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest			true	"Credentials"
//	@Success		200		{object}	authsdk.SessionResponse			"Session token, expiry and user"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Invalid request body"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid credentials, TOTP code required or invalid"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limit exceeded"
//	@Router			/api/session [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, issued, err := h.LoginService.Login(ctx, r, req.Identifier, req.Password, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			authsdk.ErrInvalidCredentials.WriteError(w)
		case errors.Is(err, service.ErrTOTPRequired):
			authsdk.ErrTOTPRequired.WriteError(w)
		case errors.Is(err, service.ErrInvalidTOTPCode):
			authsdk.ErrInvalidTOTPCode.WriteError(w)
		default:
			log.Error("login failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	if issued.Cookie != nil {
		http.SetCookie(w, issued.Cookie)
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User:      toUserResponse(user),
	})
}

// HandleGet handles GET /api/session
//
//	@Summary		Current user
//	@Description	Returns the user behind the session token.
//	@Tags			Session
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse	"Authenticated user"
//	@Failure		401	{object}	authsdk.ErrorResponse	"No valid session"
//	@Router			/api/session [get].
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleDelete handles DELETE /api/session
//
//	@Summary		Close the session
//	@Description	Clears the session cookie. Tokens are stateless and stay valid until they expire.
//	@Tags			Session
//	@Success		204	"Cookie cleared"
//	@Router			/api/session [delete].
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if c := h.Sessions.ClearSession(); c != nil {
		http.SetCookie(w, c)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogout handles GET /logout for browser navigation.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c := h.Sessions.ClearSession(); c != nil {
		http.SetCookie(w, c)
	}

	target := h.LoginPath
	if target == "" {
		target = "/login"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
