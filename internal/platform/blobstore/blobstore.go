// Package blobstore stores uploaded file content. It defines the Store
// interface, an in-memory implementation for testing and development, and a
// MinIO-backed implementation for production. File metadata lives in the
// database; this package only handles bytes.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrFileTooLarge   = errors.New("file exceeds maximum allowed size")
)

// MaxFileSize is the maximum allowed object size in bytes (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// Store defines the contract for blob storage backends. Keys are opaque
// object names chosen by the caller.
type Store interface {
	Put(ctx context.Context, key, contentType string, content io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type storedObject struct {
	contentType string
	content     []byte
}

// MemoryStore is a thread-safe, in-memory Store for testing and development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*storedObject),
	}
}

// Put reads the content and stores it under key, enforcing MaxFileSize.
func (s *MemoryStore) Put(_ context.Context, key, contentType string, content io.Reader) (int64, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return 0, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return 0, ErrFileTooLarge
	}

	s.mu.Lock()
	s.objects[key] = &storedObject{contentType: contentType, content: data}
	s.mu.Unlock()

	return int64(len(data)), nil
}

// Len reports how many objects the store holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Get returns an io.ReadCloser over the object content.
func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

// Delete removes an object by key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}
