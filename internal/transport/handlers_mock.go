package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
	"github.com/gin-gonic/gin"
)

type mockWorkflow struct {
	selectImageFn func(ctx context.Context, img model.SelectedImage) (model.State, error)
	startFn       func(ctx context.Context) (model.State, error)
	snapshotFn    func() model.State
	subscribeFn   func() (<-chan model.State, func())
	openPreviewFn func(ctx context.Context, id string) (io.ReadCloser, string, error)
}

func (m *mockWorkflow) SelectImage(ctx context.Context, img model.SelectedImage) (model.State, error) {
	return m.selectImageFn(ctx, img)
}

func (m *mockWorkflow) StartSegmentation(ctx context.Context) (model.State, error) {
	return m.startFn(ctx)
}

func (m *mockWorkflow) Snapshot() model.State {
	return m.snapshotFn()
}

func (m *mockWorkflow) Subscribe() (<-chan model.State, func()) {
	return m.subscribeFn()
}

func (m *mockWorkflow) OpenPreview(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.openPreviewFn(ctx, id)
}

// fixedSession всегда отдает один и тот же воркфлоу с заданным id
func fixedSession(id string, wf Workflow) SessionResolver {
	return func(string) (string, Workflow) {
		return id, wf
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}
