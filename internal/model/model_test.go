package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type emptyErr struct{}

func (emptyErr) Error() string { return "" }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: ErrNoImageSelected, want: KindValidation},
		{name: "transport", err: &TransportError{StatusCode: 500, Body: "model error"}, want: KindTransport},
		{name: "wrapped transport", err: fmt.Errorf("segment: %w", &TransportError{StatusCode: 413}), want: KindTransport},
		{name: "protocol", err: ErrUnexpectedResponse, want: KindProtocol},
		{name: "anything else", err: errors.New("connection refused"), want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestTransportError_Message(t *testing.T) {
	err := &TransportError{StatusCode: 500, Body: "model error"}
	require.Contains(t, err.Error(), "500")
	require.Contains(t, err.Error(), "model error")
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "", ErrorMessage(nil))
	require.Equal(t, "boom", ErrorMessage(errors.New("boom")))
	require.Equal(t, "unknown error", ErrorMessage(emptyErr{}))
}

func TestParsePage(t *testing.T) {
	require.Equal(t, PageUpload, ParsePage("upload"))
	require.Equal(t, PageAbout, ParsePage("about"))
	require.Equal(t, PageHome, ParsePage(""))
	require.Equal(t, PageHome, ParsePage("settings"))
}

func TestParseTheme(t *testing.T) {
	require.Equal(t, ThemeOcean, ParseTheme("ocean"))
	require.Equal(t, ThemeSunrise, ParseTheme("neon"))
}

func TestFileExt(t *testing.T) {
	require.Equal(t, ".jpg", FileExt(JPEG))
	require.Equal(t, ".png", FileExt("application/octet-stream"))
}
