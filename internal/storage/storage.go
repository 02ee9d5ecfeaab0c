package storage

import (
	"context"
	"errors"
)

// ErrInvalidKey is returned for keys that would escape the store's namespace.
var ErrInvalidKey = errors.New("invalid storage key")

// Store persists avatar files and maps keys to public URLs.
type Store interface {
	// Put writes data under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// KeyFromURL reverses a URL produced by Put.
	KeyFromURL(url string) (string, bool)
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	for _, r := range key {
		if r == '/' || r == '\\' || r == 0 {
			return false
		}
	}
	return true
}
