package cryptox

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// fingerprintKey is the BLAKE3 key for client fingerprints: the ASCII domain
// name zero-padded to 32 bytes. Changing it invalidates every issued session.
var fingerprintKey = [32]byte{
	'l', 'o', 'x', 'y', 'a', '.', 's', 'e', 's', 's', 'i', 'o', 'n', '.', 'f', 'i',
	'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0,
}

// FingerprintClient hashes the ordered (user-agent, accept-language) pair
// into an opaque identifier. Same inputs give the same output; the header
// bytes are hashed verbatim.
//
// Each field is written as a 4-byte big-endian length followed by its raw
// bytes. The result is base64url without padding (43 chars).
func FingerprintClient(userAgent, acceptLanguage string) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("cryptox: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	writeField(hasher, userAgent)
	writeField(hasher, acceptLanguage)

	return base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
}

func writeField(h *blake3.Hasher, v string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(v))) // #nosec G115
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(v))
}

var passwordStampKey = [32]byte{
	'l', 'o', 'x', 'y', 'a', '.', 'p', 'a', 's', 's', 'w', 'o', 'r', 'd', '.', 's',
	't', 'a', 'm', 'p', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// PasswordStamp returns a short digest of a stored password hash. It
// changes whenever the password is set again, since every hash carries a
// fresh salt.
func PasswordStamp(passwordHash string) string {
	hasher, err := blake3.NewKeyed(passwordStampKey[:])
	if err != nil {
		panic("cryptox: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(passwordHash))

	return base64.RawURLEncoding.EncodeToString(hasher.Sum(nil)[:16])
}
