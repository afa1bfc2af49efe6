// Package segclient talks to the remote segmentation endpoint
package segclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
	"github.com/UnendingLoop/PolypSegmentation/internal/mwlogger"
	"github.com/gabriel-vasile/mimetype"
)

// ImageField - имя multipart-поля, которое ждет сервер сегментации
const ImageField = "image"

type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a client for endpoint. A zero timeout means the request may run
// until the remote side answers or the connection fails.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type segmentResponse struct {
	ImageURL string `json:"segmentation_image_url"`
	Base64   string `json:"segmentation_base64"`
}

// Segment uploads img and interprets the endpoint's answer.
func (c *Client) Segment(ctx context.Context, img model.SelectedImage) (model.SegmentationResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	body, contentType, err := buildMultipart(img)
	if err != nil {
		return model.SegmentationResult{}, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return model.SegmentationResult{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return model.SegmentationResult{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SegmentationResult{}, fmt.Errorf("read response body: %w", err)
	}

	logger.Info().
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("latency", time.Since(start)).
		Msg("Segmentation endpoint answered")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.SegmentationResult{}, &model.TransportError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return decodeResponse(raw)
}

// decodeResponse: невалидный JSON - ошибка разбора, валидный, но не объект - ошибка протокола
func decodeResponse(raw []byte) (model.SegmentationResult, error) {
	var body json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return model.SegmentationResult{}, fmt.Errorf("decode response: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return model.SegmentationResult{}, model.ErrUnexpectedResponse
	}

	var parsed segmentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.SegmentationResult{}, fmt.Errorf("decode response: %w", err)
	}

	return interpret(parsed)
}

func interpret(r segmentResponse) (model.SegmentationResult, error) {
	// URL в приоритете, даже если пришел и base64
	switch {
	case r.ImageURL != "":
		return model.SegmentationResult{Kind: model.ResultURL, Source: r.ImageURL}, nil
	case r.Base64 != "":
		payload := strings.TrimSpace(r.Base64)
		mediaType := SniffInline(payload)
		return model.SegmentationResult{
			Kind:      model.ResultInline,
			Source:    "data:" + mediaType + ";base64," + payload,
			MediaType: mediaType,
		}, nil
	default:
		return model.SegmentationResult{}, model.ErrUnexpectedResponse
	}
}

// SniffInline guesses the image media type of a base64 payload. Anything that
// doesn't decode or doesn't look like an image is treated as PNG.
func SniffInline(payload string) string {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return model.DefaultInlineType
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return model.DefaultInlineType
	}
	return mt.String()
}

// DecodeInline returns the raw bytes behind an inline result.
func DecodeInline(res model.SegmentationResult) ([]byte, error) {
	if res.Kind != model.ResultInline {
		return nil, fmt.Errorf("result is not inline: %q", res.Kind)
	}
	_, payload, ok := strings.Cut(res.Source, ";base64,")
	if !ok {
		return nil, fmt.Errorf("malformed inline result")
	}
	return base64.StdEncoding.DecodeString(payload)
}

func buildMultipart(img model.SelectedImage) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	name := img.FileName
	if name == "" {
		name = "upload" + model.FileExt(img.MediaType)
	}

	// CreateFormFile всегда ставит application/octet-stream, поэтому собираем заголовок сами
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, ImageField, name))
	if img.MediaType != "" {
		header.Set("Content-Type", img.MediaType)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("copy form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}
