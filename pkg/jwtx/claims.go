package jwtx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes for the two token scopes. Both can be overridden by the
// service configuration.
const (
	// DefaultSessionLifetime is how long an auth-scoped token stays valid.
	DefaultSessionLifetime = 12 * time.Hour

	// DefaultPasswordResetLifetime is how long a password-reset token stays valid.
	DefaultPasswordResetLifetime = 30 * time.Minute
)

// Reserved claim names. Payload keys share the top-level claim namespace so
// none of these may be used as a payload key.
const (
	ClaimScope       = "scope"
	ClaimIssuedAt    = "iat"
	ClaimExpiresAt   = "exp"
	ClaimFingerprint = "fpt"
)

var reservedClaims = map[string]struct{}{
	ClaimScope:       {},
	ClaimIssuedAt:    {},
	ClaimExpiresAt:   {},
	ClaimFingerprint: {},
}

// IsReservedClaim reports whether name is one of the protocol claims.
func IsReservedClaim(name string) bool {
	_, ok := reservedClaims[name]
	return ok
}

// Scope is the declared purpose of a token.
type Scope string

const (
	ScopeAuth          Scope = "auth"
	ScopePasswordReset Scope = "password-reset"
)

// Payload is the scope-specific data carried by a token.
type Payload map[string]any

// buildClaims merges the protocol claims and the payload into one claim set.
func buildClaims(scope Scope, issuedAt, expiresAt time.Time, fingerprint string, payload Payload) (jwt.MapClaims, error) {
	claims := make(jwt.MapClaims, len(payload)+len(reservedClaims))
	for k, v := range payload {
		if IsReservedClaim(k) {
			return nil, fmt.Errorf("%w: %q", ErrReservedClaim, k)
		}
		claims[k] = v
	}

	claims[ClaimScope] = string(scope)
	claims[ClaimIssuedAt] = issuedAt.Unix()
	claims[ClaimExpiresAt] = expiresAt.Unix()
	claims[ClaimFingerprint] = fingerprint

	return claims, nil
}

// splitClaims returns the non-reserved claims with JSON numbers normalised.
func splitClaims(claims jwt.MapClaims) Payload {
	payload := make(Payload, len(claims))
	for k, v := range claims {
		if IsReservedClaim(k) {
			continue
		}
		payload[k] = normalizeValue(v)
	}
	return payload
}

// normalizeValue turns json.Number into int64 when integral and float64
// otherwise, recursing into objects and arrays.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return v
	}
}
