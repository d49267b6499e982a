package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/pkg/authsdk"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/slogx"
)

type userCtxKey struct{}

// RequireSession rejects requests without a valid session with 401. The
// resolved user is stored in the request context, and its id is recorded
// for per-user rate limiting.
func RequireSession(sessions *service.SessionService) httpx.Middleware {
	return httpx.AuthnMiddleware(func(r *http.Request) (*http.Request, bool) {
		user := sessions.GetUser(r)
		if user == nil {
			return r, false
		}

		ctx := context.WithValue(r.Context(), userCtxKey{}, *user)
		ctx = httpx.ContextWithUserID(ctx, strconv.FormatInt(user.ID, 10))
		ctx = slogx.With(ctx, "user_id", user.ID)
		return r.WithContext(ctx), true
	})
}

// userFromContext returns the user stored by RequireSession.
func userFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(domain.User)
	return u, ok
}

// decodeRequest decodes a JSON body into v and validates it. On failure the
// error response is already written.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Debug("rejecting request body", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	if err := authsdk.Validate(v); err != nil {
		var valErr *authsdk.ValidationError
		if errors.As(err, &valErr) {
			valErr.WriteError(w)
			return false
		}
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	return true
}

func toUserResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:          u.ID,
		Pseudo:      u.Pseudo,
		Email:       u.Email,
		Group:       string(u.Group),
		TOTPEnabled: u.TOTPEnabled(),
	}
}
