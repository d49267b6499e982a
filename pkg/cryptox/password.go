package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for new hashes. Stored hashes carry their own.
const (
	argonMemory      = 19 * 1024 // KiB
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

var (
	// ErrPasswordMismatch means the password does not match the hash.
	ErrPasswordMismatch = errors.New("cryptox: password does not match")
	// ErrInvalidHash means the stored hash is not a supported PHC string.
	ErrInvalidHash = errors.New("cryptox: invalid password hash")
)

// PasswordHasher produces and checks Argon2id PHC strings. The pepper is
// appended to every password before hashing.
type PasswordHasher struct {
	pepper []byte
}

// NewPasswordHasher returns a hasher using pepper.
func NewPasswordHasher(pepper string) *PasswordHasher {
	return &PasswordHasher{pepper: []byte(pepper)}
}

func (h *PasswordHasher) material(password string) []byte {
	out := make([]byte, 0, len(password)+len(h.pepper))
	out = append(out, password...)
	return append(out, h.pepper...)
}

// Hash returns a "$argon2id$v=19$m=..,t=..,p=..$salt$hash" string.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: generate salt: %w", err)
	}
	sum := argon2.IDKey(h.material(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks password against encoded. It returns ErrInvalidHash for
// unparseable input and ErrPasswordMismatch on a wrong password.
func (h *PasswordHasher) Verify(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	// ["", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash]
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return fmt.Errorf("%w: digest", ErrInvalidHash)
	}

	got := argon2.IDKey(h.material(password), salt, iters, mem, par, uint32(len(want))) // #nosec G115
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// GeneratePassword returns a random alphanumeric password of length n.
func GeneratePassword(n int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	if n <= 0 {
		return "", fmt.Errorf("cryptox: password length must be positive, got %d", n)
	}
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("cryptox: generate password: %w", err)
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}
