// Package blobstore holds uploaded document content. The records
// service only depends on the Store contract: write content under a
// key, get a public URL back, read it again, remove it.
package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

type Store interface {
	// Put writes the content under key and returns its public URL.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	URL(key string) string
}

// validKey rejects anything that could escape the store's namespace.
func validKey(key string) bool {
	if key == "" || strings.Contains(key, "..") {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
