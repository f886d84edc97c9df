package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	catalogapp "github.com/mystique/backend/internal/application/catalog"
)

var _ catalogapp.ObjectStorageService = (*MemoryObjectStorage)(nil)

// MemoryObjectStorage keeps objects in process memory. It backs local
// development without an S3 endpoint and the uploader tests
type MemoryObjectStorage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryObjectStorage creates an empty store serving URLs under baseURL
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = "http://localhost:8080/media"
	}
	return &MemoryObjectStorage{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		objects: make(map[string]memoryObject),
	}
}

// PutObject stores a copy of body
func (s *MemoryObjectStorage) PutObject(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return nil
}

// DeleteObject removes key
func (s *MemoryObjectStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// ObjectURL returns the public URL of key
func (s *MemoryObjectStorage) ObjectURL(key string) string {
	return s.baseURL + key
}

// KeyFromURL extracts the key from a URL built by ObjectURL
func (s *MemoryObjectStorage) KeyFromURL(rawURL string) (string, bool) {
	return keyFromURL(s.baseURL, rawURL)
}

// Get returns a stored object
func (s *MemoryObjectStorage) Get(key string) (data []byte, contentType string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.contentType, true
}

// Len returns the number of stored objects
func (s *MemoryObjectStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
