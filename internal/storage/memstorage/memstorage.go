// Package memstorage keeps preview objects in process memory
package memstorage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
)

type object struct {
	data        []byte
	contentType string
}

type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]object
}

func New() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]object)}
}

func (s *MemoryStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return io.ErrUnexpectedEOF
	}

	s.mu.Lock()
	s.objects[key] = object{data: data, contentType: contentType}
	s.mu.Unlock()

	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, "", model.ErrPreviewNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

// Delete is idempotent.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
