package segclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// минимальные сигнатуры форматов
var (
	pngHeader  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 16, 'J', 'F', 'I', 'F', 0}
)

func testImage() model.SelectedImage {
	return model.SelectedImage{
		FileName:  "colon.jpg",
		MediaType: model.JPEG,
		Data:      append(append([]byte{}, jpegHeader...), bytes.Repeat([]byte{0x42}, 10*1024)...),
	}
}

func TestClient_Segment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantResult model.SegmentationResult
		wantKind   model.ErrorKind
		wantErrMsg []string
	}{
		{
			name:       "url result",
			status:     http.StatusOK,
			body:       `{"segmentation_image_url": "https://host/out.png"}`,
			wantResult: model.SegmentationResult{Kind: model.ResultURL, Source: "https://host/out.png"},
		},
		{
			name:   "url wins over base64",
			status: http.StatusOK,
			body:   `{"segmentation_image_url": "https://host/out.png", "segmentation_base64": "aGVsbG8="}`,
			wantResult: model.SegmentationResult{
				Kind:   model.ResultURL,
				Source: "https://host/out.png",
			},
		},
		{
			name:   "inline png",
			status: http.StatusOK,
			body:   `{"segmentation_base64": "` + base64.StdEncoding.EncodeToString(pngHeader) + `"}`,
			wantResult: model.SegmentationResult{
				Kind:      model.ResultInline,
				Source:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
				MediaType: model.PNG,
			},
		},
		{
			name:       "model error 500",
			status:     http.StatusInternalServerError,
			body:       "model error",
			wantKind:   model.KindTransport,
			wantErrMsg: []string{"500", "model error"},
		},
		{
			name:       "payload too large",
			status:     http.StatusRequestEntityTooLarge,
			body:       "too large",
			wantKind:   model.KindTransport,
			wantErrMsg: []string{"413", "too large"},
		},
		{
			name:       "error status with json body is still a failure",
			status:     http.StatusBadGateway,
			body:       `{"segmentation_image_url": "https://host/out.png"}`,
			wantKind:   model.KindTransport,
			wantErrMsg: []string{"502"},
		},
		{
			name:       "empty object",
			status:     http.StatusOK,
			body:       `{}`,
			wantKind:   model.KindProtocol,
			wantErrMsg: []string{"unexpected response from server"},
		},
		{
			name:       "json array",
			status:     http.StatusOK,
			body:       `[]`,
			wantKind:   model.KindProtocol,
			wantErrMsg: []string{"unexpected response from server"},
		},
		{
			name:       "json string",
			status:     http.StatusOK,
			body:       `"ok"`,
			wantKind:   model.KindProtocol,
			wantErrMsg: []string{"unexpected response from server"},
		},
		{
			name:       "json null",
			status:     http.StatusOK,
			body:       `null`,
			wantKind:   model.KindProtocol,
			wantErrMsg: []string{"unexpected response from server"},
		},
		{
			name:       "wrong field types",
			status:     http.StatusOK,
			body:       `{"segmentation_image_url": 42}`,
			wantKind:   model.KindUnknown,
			wantErrMsg: []string{"decode response"},
		},
		{
			name:       "not json",
			status:     http.StatusOK,
			body:       `<html>oops</html>`,
			wantKind:   model.KindUnknown,
			wantErrMsg: []string{"decode response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			res, err := New(server.URL, 0).Segment(context.Background(), testImage())
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, model.ClassifyError(err))
				for _, part := range tt.wantErrMsg {
					assert.Contains(t, err.Error(), part)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, res)
		})
	}
}

func TestClient_Segment_SendsMultipartImage(t *testing.T) {
	t.Parallel()

	img := testImage()
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Len(t, r.MultipartForm.File, 1)

		file, header, err := r.FormFile(ImageField)
		require.NoError(t, err)
		defer file.Close()

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, img.Data, data)
		assert.Equal(t, "colon.jpg", header.Filename)
		assert.Equal(t, model.JPEG, header.Header.Get("Content-Type"))

		_, _ = w.Write([]byte(`{"segmentation_image_url": "https://host/out.png"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, 0).Segment(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_Segment_ConnectionRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, 0).Segment(context.Background(), testImage())
	require.Error(t, err)
	assert.Equal(t, model.KindUnknown, model.ClassifyError(err))
	assert.NotEmpty(t, model.ErrorMessage(err))
}

func TestClient_Segment_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := New(server.URL, 50*time.Millisecond).Segment(context.Background(), testImage())
	require.Error(t, err)
	var tErr *model.TransportError
	assert.False(t, errors.As(err, &tErr))
}

func TestSniffInline(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.PNG, SniffInline(base64.StdEncoding.EncodeToString(pngHeader)))
	assert.Equal(t, model.JPEG, SniffInline(base64.StdEncoding.EncodeToString(jpegHeader)))
	assert.Equal(t, model.PNG, SniffInline(base64.StdEncoding.EncodeToString([]byte("plain text"))))
	assert.Equal(t, model.PNG, SniffInline("%%% not base64"))
}

func TestDecodeInline(t *testing.T) {
	t.Parallel()

	res, err := interpret(segmentResponse{Base64: base64.StdEncoding.EncodeToString(pngHeader)})
	require.NoError(t, err)

	data, err := DecodeInline(res)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	_, err = DecodeInline(model.SegmentationResult{Kind: model.ResultURL, Source: "https://host/out.png"})
	require.Error(t, err)
}
