package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/loxya/loxya/pkg/jwtx"
)

var ErrAmbiguousSecret = errors.New("app: set only one of LOXYA_JWT_SECRET and LOXYA_JWT_SECRET_FILE")

// LoadSecret returns the session signing secret from the inline value or
// the secret file. Surrounding whitespace in the file is ignored.
func LoadSecret(cfg Config) ([]byte, error) {
	switch {
	case cfg.JWTSecret != "" && cfg.JWTSecretFile != "":
		return nil, ErrAmbiguousSecret
	case cfg.JWTSecret != "":
		return []byte(cfg.JWTSecret), nil
	case cfg.JWTSecretFile != "":
		raw, err := os.ReadFile(cfg.JWTSecretFile)
		if err != nil {
			return nil, fmt.Errorf("read secret file: %w", err)
		}
		return []byte(strings.TrimSpace(string(raw))), nil
	default:
		return nil, jwtx.ErrMissingSecret
	}
}

// InitCodec loads the signing secret and builds the token codec. A missing
// or weak secret is a fatal configuration error.
func InitCodec(cfg Config, logger *slog.Logger) (*jwtx.Codec, error) {
	secret, err := LoadSecret(cfg)
	if err != nil {
		return nil, err
	}

	codec, err := jwtx.NewCodec(secret)
	if err != nil {
		return nil, err
	}

	source := "env"
	if cfg.JWTSecretFile != "" {
		source = "file"
	}
	logger.Info("session signing secret loaded", "source", source, "bytes", len(secret))
	return codec, nil
}
