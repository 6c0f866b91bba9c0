package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	baseURL string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		blobs:   map[string][]byte{},
		baseURL: baseURL,
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, _ string, r io.Reader) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return s.URL(key), nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.blobs[key]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return joinURL(s.baseURL, key)
}

var _ Store = (*MemoryStore)(nil)
