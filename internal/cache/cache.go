// Package cache provides opt-in on-disk caches for fetched pages and model
// responses. Both are disabled unless a directory is configured.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
)

// errNoDir is returned when a cache is used without a directory.
var errNoDir = errors.New("cache dir not configured")

// digest returns the lowercase hex SHA-256 of s.
func digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// KeyFrom builds a cache key from model and prompt digest.
func KeyFrom(model string, prompt string) string {
	return digest(model + "\n\n" + prompt)
}

// ensureDir creates dir with 0755, or 0700 when strict, tightening an
// existing directory in the strict case.
func ensureDir(dir string, strict bool) error {
	if dir == "" {
		return errNoDir
	}
	perm := os.FileMode(0o755)
	if strict {
		perm = 0o700
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(dir, 0o700)
		}
	}
	return nil
}

func fileMode(strict bool) os.FileMode {
	if strict {
		return 0o600
	}
	return 0o644
}
