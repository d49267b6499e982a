package jwtx

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed           = errors.New("jwtx: malformed token")
	ErrInvalidSignature    = errors.New("jwtx: invalid signature")
	ErrExpired             = errors.New("jwtx: token expired")
	ErrWrongScope          = errors.New("jwtx: wrong token scope")
	ErrFingerprintMismatch = errors.New("jwtx: fingerprint mismatch")
	ErrInvalidPayload      = errors.New("jwtx: invalid payload shape")
	ErrInvalidClaim        = errors.New("jwtx: invalid claims")
)

// Decode verifies token and returns its payload without the reserved claims.
//
// Checks run in order: signature (HS256 only) and expiry, scope,
// fingerprint, then schema when one is given. A token is valid while
// now < exp. Integral JSON numbers come back as int64.
func (c *Codec) Decode(expected Scope, token, fingerprint string, schema Schema) (Payload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	if scope, _ := claims[ClaimScope].(string); scope != string(expected) {
		return nil, ErrWrongScope
	}

	fpt, _ := claims[ClaimFingerprint].(string)
	if subtle.ConstantTimeCompare([]byte(fpt), []byte(fingerprint)) != 1 {
		return nil, ErrFingerprintMismatch
	}

	payload := splitClaims(claims)
	if schema != nil {
		if err := schema(payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	return payload, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, ErrInvalidSignature):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// Reason maps a decode error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrWrongScope):
		return "wrong_scope"
	case errors.Is(err, ErrFingerprintMismatch):
		return "fingerprint_mismatch"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrInvalidClaim):
		return "invalid_claim"
	default:
		return "unknown"
	}
}
