package model

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTransport  ErrorKind = "transport"
	KindProtocol   ErrorKind = "protocol"
	KindUnknown    ErrorKind = "unknown"
)

var (
	ErrCommon500          error = errors.New("something went wrong. Try again later")               // 500
	ErrNoImageSelected    error = errors.New("no image selected: please upload an image first")     // 400
	ErrRequestInFlight    error = errors.New("segmentation request is already in progress")         // 409
	ErrUnexpectedResponse error = errors.New("unexpected response from server")                     // протокол нарушен
	ErrEmptyUpload        error = errors.New("image is required")                                   // 400
	ErrPreviewNotFound    error = errors.New("preview doesn't exist or has been released")          // 404
	ErrResultNotReady     error = errors.New("no segmentation result for the current image")        // 404
	ErrUnknown            error = errors.New("unknown error")
)

// TransportError - сервер сегментации ответил не-2xx статусом
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Body)
}

// ClassifyError maps any workflow error onto the error taxonomy.
func ClassifyError(err error) ErrorKind {
	var tErr *TransportError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoImageSelected):
		return KindValidation
	case errors.As(err, &tErr):
		return KindTransport
	case errors.Is(err, ErrUnexpectedResponse):
		return KindProtocol
	default:
		return KindUnknown
	}
}

// ErrorMessage is the text shown to the user.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return ErrUnknown.Error()
}
