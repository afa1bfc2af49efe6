package session

import (
	"context"
	"testing"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
	"github.com/UnendingLoop/PolypSegmentation/internal/storage/memstorage"
	"github.com/UnendingLoop/PolypSegmentation/internal/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

// blockingSegmenter отвечает только после закрытия release
type blockingSegmenter struct {
	release chan struct{}
}

func (b *blockingSegmenter) Segment(ctx context.Context, img model.SelectedImage) (model.SegmentationResult, error) {
	<-b.release
	return model.SegmentationResult{Kind: model.ResultURL, Source: "https://host/out.png"}, nil
}

func newTestRegistry() (*Registry, *memstorage.MemoryStorage, *fakeClock) {
	store := memstorage.New()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(func() *workflow.Controller {
		return workflow.NewController(nil, store, "previews/")
	})
	r.now = clock.now
	return r, store, clock
}

func TestRegistry_Get(t *testing.T) {
	r, _, _ := newTestRegistry()

	id, ctrl := r.Get("")
	require.NoError(t, uuid.Validate(id))
	require.NotNil(t, ctrl)

	sameID, same := r.Get(id)
	require.Equal(t, id, sameID)
	require.Same(t, ctrl, same)

	// битая кука - новая сессия
	otherID, other := r.Get("not-a-uuid")
	require.NotEqual(t, "not-a-uuid", otherID)
	require.NotSame(t, ctrl, other)

	// валидный uuid от прошлого запуска принимаем как есть
	known := uuid.New().String()
	gotID, _ := r.Get(known)
	require.Equal(t, known, gotID)

	require.Equal(t, 3, r.count())

	_, ok := r.lookup(uuid.New().String())
	require.False(t, ok)
	found, ok := r.lookup(id)
	require.True(t, ok)
	require.Same(t, ctrl, found)
}

func TestRegistry_Sweep(t *testing.T) {
	ctx := context.Background()
	r, store, clock := newTestRegistry()

	oldID, oldCtrl := r.Get("")
	_, err := oldCtrl.SelectImage(ctx, model.SelectedImage{FileName: "a.png", MediaType: model.PNG, Data: []byte("png")})
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	clock.t = clock.t.Add(20 * time.Minute)
	freshID, _ := r.Get("")

	clock.t = clock.t.Add(15 * time.Minute)
	require.Equal(t, 1, r.Sweep(ctx, 30*time.Minute))

	require.Equal(t, 1, r.count())
	_, ok := r.lookup(oldID)
	require.False(t, ok)
	_, ok = r.lookup(freshID)
	require.True(t, ok)
	// превью закрытой сессии освобождено
	require.Zero(t, store.Len())
}

func TestRegistry_CloseAll(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRegistry()

	for i := 0; i < 3; i++ {
		_, ctrl := r.Get("")
		_, err := ctrl.SelectImage(ctx, model.SelectedImage{FileName: "a.png", MediaType: model.PNG, Data: []byte("png")})
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.Len())

	r.CloseAll(ctx)
	require.Zero(t, r.count())
	require.Zero(t, store.Len())
}

func TestRegistry_CloseAllWaitsForRunningRequest(t *testing.T) {
	seg := &blockingSegmenter{release: make(chan struct{})}
	r := NewRegistry(func() *workflow.Controller {
		return workflow.NewController(seg, memstorage.New(), "previews/")
	})

	_, ctrl := r.Get("")
	_, err := ctrl.SelectImage(context.Background(), model.SelectedImage{FileName: "a.png", MediaType: model.PNG, Data: []byte("png")})
	require.NoError(t, err)
	_, err = ctrl.StartSegmentation(context.Background())
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		r.CloseAll(context.Background())
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("CloseAll returned while segmentation was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(seg.release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("CloseAll did not return after segmentation finished")
	}
	require.Equal(t, model.StatusSucceeded, ctrl.Snapshot().Status)
}

func TestRegistry_CloseAllGivesUpOnTimeout(t *testing.T) {
	seg := &blockingSegmenter{release: make(chan struct{})}
	defer close(seg.release)
	store := memstorage.New()
	r := NewRegistry(func() *workflow.Controller {
		return workflow.NewController(seg, store, "previews/")
	})

	_, ctrl := r.Get("")
	_, err := ctrl.SelectImage(context.Background(), model.SelectedImage{FileName: "a.png", MediaType: model.PNG, Data: []byte("png")})
	require.NoError(t, err)
	_, err = ctrl.StartSegmentation(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	r.CloseAll(ctx)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Zero(t, r.count())
	// превью освобождено, хотя запрос еще висит
	require.Zero(t, store.Len())
}

func TestStartSweeper(t *testing.T) {
	r, _, _ := newTestRegistry()

	_, err := StartSweeper(context.Background(), r, "not a spec", time.Minute)
	require.Error(t, err)

	c, err := StartSweeper(context.Background(), r, "@every 1h", time.Minute)
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}
