// Package media stores uploaded photo files in S3-compatible object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
)

var (
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("media too large")
	ErrNotFound        = errors.New("media not found")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store is the object storage boundary.
type Store interface {
	// Put stores r under a fresh reference owned by ownerID and returns it.
	Put(ctx context.Context, ownerID, contentType string, r io.Reader, size int64) (string, error)
	Exists(ctx context.Context, ref string) (bool, error)
}

// NewRef builds a fresh object reference for ownerID.
func NewRef(ownerID, contentType string) (string, error) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	ownerID = strings.Trim(strings.TrimSpace(ownerID), "/")
	if ownerID == "" {
		return "", errors.New("owner is required")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return ownerID + "/" + id.String() + ext, nil
}

// MemoryStore keeps objects in memory. Used when no object storage is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	maxBytes int64
}

func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), maxBytes: maxBytes}
}

func (m *MemoryStore) Put(ctx context.Context, ownerID, contentType string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.maxBytes > 0 && size > m.maxBytes {
		return "", ErrTooLarge
	}
	ref, err := NewRef(ownerID, contentType)
	if err != nil {
		return "", err
	}
	limit := m.maxBytes
	if limit <= 0 {
		limit = size
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", ErrTooLarge
	}
	m.mu.Lock()
	m.objects[ref] = data
	m.mu.Unlock()
	return ref, nil
}

func (m *MemoryStore) Exists(_ context.Context, ref string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[ref]
	return ok, nil
}
