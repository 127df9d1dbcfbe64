// Package util holds helpers shared by the object stores and the media route.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxNameRunes = 80

// ErrInvalidFileName is returned for names that are empty or try to walk out
// of the owner's namespace.
var ErrInvalidFileName = errors.New("invalid file name")

// OwnerNamespace is the first key segment of every object a user uploads.
// Hashing keeps raw user ids out of object keys and URLs.
func OwnerNamespace(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

// KeyOwner returns the namespace segment of key, or "" when key has none.
func KeyOwner(key string) string {
	owner, _, ok := strings.Cut(strings.TrimPrefix(key, "/"), "/")
	if !ok {
		return ""
	}
	return owner
}

// ImageKey builds "<namespace>/<random>_<name>" for an upload.
func ImageKey(userID, fileName string) (string, error) {
	name, err := CleanFileName(fileName)
	if err != nil {
		return "", err
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return path.Join(OwnerNamespace(userID), random+"_"+name), nil
}

// CleanFileName keeps a browser-supplied name usable as a single key segment:
// separators, spaces and control characters become underscores and long
// names are cut while keeping the extension.
func CleanFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', unicode.IsSpace(r), unicode.IsControl(r):
			return '_'
		}
		return r
	}, name)

	runes := []rune(cleaned)
	if len(runes) <= maxNameRunes {
		return cleaned, nil
	}
	ext := []rune(path.Ext(cleaned))
	if len(ext) >= maxNameRunes {
		ext = nil
	}
	return string(runes[:maxNameRunes-len(ext)]) + string(ext), nil
}
