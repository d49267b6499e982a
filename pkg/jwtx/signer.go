package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest signing secret accepted for HS256.
const MinSecretLength = 32

var (
	ErrMissingSecret = errors.New("jwtx: missing signing secret")
	ErrWeakSecret    = errors.New("jwtx: signing secret too short")
	ErrReservedClaim = errors.New("jwtx: payload uses a reserved claim")
)

// Codec signs and verifies scoped, fingerprint-bound HS256 tokens. It is the
// only holder of the signing secret.
type Codec struct {
	secret []byte
	clock  Clock
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock replaces the wall clock used for iat and expiry checks.
func WithClock(clock Clock) Option {
	return func(c *Codec) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCodec creates a Codec for the given secret. The secret is copied.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(secret))
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		clock:  SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now returns the codec's current time.
func (c *Codec) Now() time.Time { return c.clock.Now() }

// Generate signs a token for scope that expires at expiresAt and carries
// payload and fingerprint. Payload keys are merged into the top-level
// claims and must not collide with scope, iat, exp or fpt.
func (c *Codec) Generate(scope Scope, expiresAt time.Time, payload Payload, fingerprint string) (string, error) {
	if scope == "" {
		return "", fmt.Errorf("%w: empty scope", ErrInvalidClaim)
	}

	claims, err := buildClaims(scope, c.clock.Now(), expiresAt, fingerprint, payload)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign token: %w", err)
	}
	return signed, nil
}
