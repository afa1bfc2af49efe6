// Package workflow holds the upload -> segment -> render state machine.
//
// A Controller owns one State. Handlers and views get snapshots of it, and
// subscribers are notified on every transition.
package workflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
	"github.com/UnendingLoop/PolypSegmentation/internal/mwlogger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// PreviewStore - контракт для работы с хранилищем превью
type PreviewStore interface {
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Delete(ctx context.Context, key string) error
}

// Segmenter - контракт для клиента сервера сегментации
type Segmenter interface {
	Segment(ctx context.Context, img model.SelectedImage) (model.SegmentationResult, error)
}

const subscriberBuffer = 8

type Controller struct {
	segmenter Segmenter
	store     PreviewStore
	keyPrefix string

	mu         sync.Mutex
	image      *model.SelectedImage
	state      model.State
	generation uint64
	subs       map[int]chan model.State
	nextSubID  int
	inFlight   sync.WaitGroup
}

func NewController(seg Segmenter, store PreviewStore, keyPrefix string) *Controller {
	return &Controller{
		segmenter: seg,
		store:     store,
		keyPrefix: keyPrefix,
		state: model.State{
			Status:    model.StatusIdle,
			CanSubmit: true,
			UpdatedAt: time.Now().UTC(),
		},
		subs: make(map[int]chan model.State),
	}
}

// SelectImage replaces the selected image and its preview, and clears any
// previous result or error. No type or size checks are made.
func (c *Controller) SelectImage(ctx context.Context, img model.SelectedImage) (model.State, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// тип не указан браузером - определяем по содержимому
	if img.MediaType == "" {
		img.MediaType = mimetype.Detect(img.Data).String()
	}

	id := uuid.New().String()
	preview := &model.PreviewReference{
		ID:        id,
		Key:       c.keyPrefix + id + model.FileExt(img.MediaType),
		URL:       "/preview/" + id,
		MediaType: img.MediaType,
	}

	if err := c.store.Put(ctx, preview.Key, img.Size(), img.MediaType, bytes.NewReader(img.Data)); err != nil {
		logger.Error().Err(err).Msg("Failed to save preview in Storage")
		return c.Snapshot(), model.ErrCommon500
	}

	c.mu.Lock()
	old := c.state.Preview
	c.image = &img
	c.generation++

	c.state.FileName = img.FileName
	c.state.Preview = preview
	c.state.Result = nil
	c.state.Error = ""
	c.state.ErrorKind = ""
	// запрос в полете - статус остается Submitting до его завершения
	if c.state.Status != model.StatusSubmitting {
		c.state.Status = model.StatusIdle
	}
	c.state.CanSubmit = c.state.Status != model.StatusSubmitting
	snap := c.publishLocked()
	c.mu.Unlock()

	c.releasePreview(ctx, old)

	logger.Info().
		Str("file", img.FileName).
		Str("media_type", img.MediaType).
		Int64("size", img.Size()).
		Msg("Image selected")

	return snap, nil
}

// RunSegmentation submits the selected image and blocks until the endpoint
// answers. The returned error is the one stored in the state.
func (c *Controller) RunSegmentation(ctx context.Context) (model.State, error) {
	img, gen, err := c.begin(ctx)
	if err != nil {
		return c.Snapshot(), err
	}

	c.inFlight.Add(1)
	defer c.inFlight.Done()

	return c.finish(ctx, img, gen)
}

// StartSegmentation returns as soon as the state is Submitting. The request
// keeps running after ctx is canceled.
func (c *Controller) StartSegmentation(ctx context.Context) (model.State, error) {
	img, gen, err := c.begin(ctx)
	if err != nil {
		return c.Snapshot(), err
	}
	snap := c.Snapshot()

	bg := context.WithoutCancel(ctx)
	c.inFlight.Add(1)
	go func() {
		defer c.inFlight.Done()
		_, _ = c.finish(bg, img, gen)
	}()

	return snap, nil
}

// Wait blocks until no request started by this controller is running or ctx
// is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) begin(ctx context.Context) (model.SelectedImage, uint64, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	// повторный клик во время запроса - ничего не меняем
	if c.state.Status == model.StatusSubmitting {
		return model.SelectedImage{}, 0, model.ErrRequestInFlight
	}

	c.state.Result = nil
	if c.image == nil {
		c.state.Status = model.StatusFailed
		c.state.Error = model.ErrorMessage(model.ErrNoImageSelected)
		c.state.ErrorKind = model.ClassifyError(model.ErrNoImageSelected)
		c.state.CanSubmit = true
		c.publishLocked()
		logger.Info().Msg("Segmentation requested without image")
		return model.SelectedImage{}, 0, model.ErrNoImageSelected
	}

	c.state.Status = model.StatusSubmitting
	c.state.Error = ""
	c.state.ErrorKind = ""
	c.state.CanSubmit = false
	c.publishLocked()

	return *c.image, c.generation, nil
}

func (c *Controller) finish(ctx context.Context, img model.SelectedImage, gen uint64) (model.State, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	start := time.Now()

	res, err := c.segmenter.Segment(ctx, img)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.CanSubmit = true

	// пока ждали ответа выбрали другую картинку - результат уже не про нее
	if gen != c.generation {
		c.state.Status = model.StatusIdle
		snap := c.publishLocked()
		logger.Info().Err(err).Msg("Segmentation result discarded: image was replaced")
		return snap, nil
	}

	if err != nil {
		c.state.Status = model.StatusFailed
		c.state.Error = model.ErrorMessage(err)
		c.state.ErrorKind = model.ClassifyError(err)
		snap := c.publishLocked()
		logger.Warn().Err(err).
			Str("kind", string(c.state.ErrorKind)).
			Dur("took", time.Since(start)).
			Msg("Segmentation failed")
		return snap, err
	}

	c.state.Status = model.StatusSucceeded
	c.state.Result = &res
	snap := c.publishLocked()
	logger.Info().
		Str("kind", string(res.Kind)).
		Dur("took", time.Since(start)).
		Msg("Segmentation succeeded")

	return snap, nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() model.State {
	snap := c.state
	if c.state.Preview != nil {
		p := *c.state.Preview
		snap.Preview = &p
	}
	if c.state.Result != nil {
		r := *c.state.Result
		snap.Result = &r
	}
	return snap
}

// publishLocked stamps the state and fans it out. Subscribers whose buffer is
// full miss this snapshot.
func (c *Controller) publishLocked() model.State {
	c.state.UpdatedAt = time.Now().UTC()
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	return snap
}

// Subscribe returns a channel of state snapshots and a func that detaches it.
func (c *Controller) Subscribe() (<-chan model.State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan model.State, subscriberBuffer)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// OpenPreview streams the bytes behind the current preview. Released
// previews resolve to ErrPreviewNotFound.
func (c *Controller) OpenPreview(ctx context.Context, id string) (io.ReadCloser, string, error) {
	c.mu.Lock()
	preview := c.state.Preview
	c.mu.Unlock()

	if preview == nil || preview.ID != id {
		return nil, "", model.ErrPreviewNotFound
	}

	data, cType, err := c.store.Get(ctx, preview.Key)
	if err != nil {
		if errors.Is(err, model.ErrPreviewNotFound) {
			return nil, "", err
		}
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Error().Err(err).Msg("Failed to fetch preview from Storage")
		return nil, "", model.ErrCommon500
	}
	if cType == "" {
		cType = preview.MediaType
	}

	return data, cType, nil
}

// Close releases the current preview and detaches all subscribers.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	old := c.state.Preview
	c.state.Preview = nil
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.releasePreview(ctx, old)
}

func (c *Controller) releasePreview(ctx context.Context, p *model.PreviewReference) {
	if p == nil {
		return
	}
	if err := c.store.Delete(ctx, p.Key); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Error().Err(err).Str("key", p.Key).Msg("Failed to release preview in Storage")
	}
}
