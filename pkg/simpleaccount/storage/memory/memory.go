package memory

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-account/pkg/simpleaccount"
)

// Backend is an in-memory implementation of the simpleaccount.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		buckets: make(map[string]map[string][]byte),
	}
}

// Upload stores the reader's content under key
func (b *Backend) Upload(ctx context.Context, bucket, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buckets[bucket] == nil {
		b.buckets[bucket] = make(map[string][]byte)
	}
	b.buckets[bucket][key] = data
	return nil
}

// List returns the keys under prefix in lexical order
func (b *Backend) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for key := range b.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes keys; missing keys are ignored
func (b *Backend) Delete(ctx context.Context, bucket string, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	objects := b.buckets[bucket]
	for _, key := range keys {
		delete(objects, key)
	}
	return nil
}

// Download returns a copy of an object's content
func (b *Backend) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.buckets[bucket][key]
	if !exists {
		return nil, simpleaccount.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}
