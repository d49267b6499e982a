package httpx

import (
	"net/http"
	"strings"

	"github.com/loxya/loxya/pkg/cryptox"
)

// Fingerprint derives the client fingerprint of r from its User-Agent and
// Accept-Language headers. Missing headers count as empty strings.
func Fingerprint(r *http.Request) string {
	return cryptox.FingerprintClient(
		r.Header.Get("User-Agent"),
		r.Header.Get("Accept-Language"),
	)
}

// RequestClassifier reports whether a request targets the JSON API.
type RequestClassifier func(*http.Request) bool

// APIPrefixClassifier classifies requests whose path is prefix or lies
// under prefix + "/" as API requests.
func APIPrefixClassifier(prefix string) RequestClassifier {
	prefix = "/" + strings.Trim(prefix, "/")
	return func(r *http.Request) bool {
		p := r.URL.Path
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
}
