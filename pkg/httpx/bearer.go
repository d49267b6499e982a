package httpx

import (
	"net/http"
	"regexp"
	"strings"
)

// DefaultAuthHeader is the header carrying bearer credentials.
const DefaultAuthHeader = "Authorization"

var bearerPattern = regexp.MustCompile(`(?i)^\s*bearer\s+(.+)$`)

// ParseBearer extracts the token from a "Bearer <token>" value. The scheme
// word is matched case-insensitively.
func ParseBearer(value string) (string, bool) {
	m := bearerPattern.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	token := strings.TrimSpace(m[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// BearerFromHeader reads a bearer token from the named request header.
func BearerFromHeader(r *http.Request, header string) (string, bool) {
	if header == "" {
		header = DefaultAuthHeader
	}
	return ParseBearer(r.Header.Get(header))
}

// TokenFromCookie reads a token from the named cookie. A "Bearer <token>"
// value yields the token part, any other non-empty value is returned as is.
func TokenFromCookie(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	if token, ok := ParseBearer(c.Value); ok {
		return token, true
	}
	if c.Value == "" {
		return "", false
	}
	return c.Value, true
}
