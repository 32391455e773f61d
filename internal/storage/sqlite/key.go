package sqlite

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const MasterKeySize = 32

// LoadOrCreateKey reads the hex encoded master key at path, generating and
// writing a new random one (mode 0600) when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	const op = "storage.sqlite.LoadOrCreateKey"

	raw, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("%s: key file %s: %w", op, path, err)
		}
		if len(key) < MasterKeySize {
			return nil, fmt.Errorf("%s: key file %s: key too short", op, path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	key := make([]byte, MasterKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return key, nil
}
