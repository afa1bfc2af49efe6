package workflow

import (
	"context"
	"io"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
)

// MOCK SEGMENTER

type mockSegmenter struct {
	segmentFn func(ctx context.Context, img model.SelectedImage) (model.SegmentationResult, error)
}

func (m *mockSegmenter) Segment(ctx context.Context, img model.SelectedImage) (model.SegmentationResult, error) {
	return m.segmentFn(ctx, img)
}

// MOCK STORAGE

type mockStorage struct {
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}
