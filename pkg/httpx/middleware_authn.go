package httpx

import (
	"net/http"

	"github.com/loxya/loxya/pkg/slogx"
)

// Resolver identifies the caller of r. It returns the request to continue
// with, usually carrying the caller in its context, and false when the
// request is anonymous.
type Resolver func(r *http.Request) (*http.Request, bool)

// AuthnMiddleware rejects anonymous requests with 401.
func AuthnMiddleware(resolve Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authed, ok := resolve(r)
			if !ok {
				slogx.FromContext(r.Context()).Debug("rejecting anonymous request")
				WriteBearerError(w, "authentication required")
				return
			}
			next.ServeHTTP(w, authed)
		})
	}
}

// WriteBearerError writes an RFC 6750 style 401 response.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
