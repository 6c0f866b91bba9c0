package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSStore keeps blobs as flat files under a root directory. URLs are
// built from a base URL that a static file server (or reverse proxy) is
// expected to serve the root under.
type FSStore struct {
	root    string
	baseURL string
}

func NewFSStore(root string, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root, baseURL: baseURL}, nil
}

func (s *FSStore) Put(_ context.Context, key string, _ string, r io.Reader) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	path := filepath.Join(s.root, key)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return s.URL(key), nil
}

func (s *FSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FSStore) Remove(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(s.root, key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (s *FSStore) URL(key string) string {
	return joinURL(s.baseURL, key)
}

var _ Store = (*FSStore)(nil)
