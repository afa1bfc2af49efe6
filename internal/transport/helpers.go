package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrPreviewNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrRequestInFlight):
		return 409
	case errors.Is(err, model.ErrNoImageSelected),
		errors.Is(err, model.ErrEmptyUpload):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
