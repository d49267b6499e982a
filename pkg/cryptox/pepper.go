package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const pepperSize = 32

// LoadOrCreatePepper reads the password pepper from path, creating the
// file with a fresh random value when it does not exist.
func LoadOrCreatePepper(path string) (string, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		pepper := strings.TrimSpace(string(data))
		if pepper == "" {
			return "", fmt.Errorf("cryptox: pepper file %s is empty", path)
		}
		return pepper, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("cryptox: read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("cryptox: create pepper dir: %w", err)
	}
	buf := make([]byte, pepperSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	pepper := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(pepper), 0o600); err != nil {
		return "", fmt.Errorf("cryptox: write pepper: %w", err)
	}
	return pepper, nil
}
