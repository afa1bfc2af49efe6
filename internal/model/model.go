// Package model provides data-structs for internal app-usage
package model

import (
	"time"
)

type (
	Status     string
	ResultKind string
	Page       string
	Theme      string
)

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

const (
	ResultURL    ResultKind = "url"
	ResultInline ResultKind = "inline"
)

// Страницы интерфейса - одна ветка рендеринга на каждую
const (
	PageHome   Page = "home"
	PageUpload Page = "upload"
	PageDemo   Page = "demo"
	PageAbout  Page = "about"
)

var Pages = []Page{PageHome, PageUpload, PageDemo, PageAbout}

// ParsePage returns PageHome for anything it doesn't know.
func ParsePage(s string) Page {
	for _, p := range Pages {
		if string(p) == s {
			return p
		}
	}
	return PageHome
}

const (
	ThemeSunrise Theme = "sunrise"
	ThemeOcean   Theme = "ocean"
)

var ThemesMap = map[Theme]bool{
	ThemeSunrise: true,
	ThemeOcean:   true,
}

func ParseTheme(s string) Theme {
	t := Theme(s)
	if !ThemesMap[t] {
		return ThemeSunrise
	}
	return t
}

//---------------------

// SelectedImage is the file chosen by the user. Replaced on every selection.
type SelectedImage struct {
	FileName  string
	MediaType string
	Data      []byte
}

func (s SelectedImage) Size() int64 {
	return int64(len(s.Data))
}

// PreviewReference points at the stored copy of SelectedImage bytes.
// Released (and resolving to 404) once a newer image replaces it.
type PreviewReference struct {
	ID        string `json:"id"`
	Key       string `json:"-"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

type SegmentationResult struct {
	Kind      ResultKind `json:"kind"`
	Source    string     `json:"source"`
	MediaType string     `json:"media_type,omitempty"`
}

// State - снапшот состояния воркфлоу, отдается хендлерам и вьюхам
type State struct {
	FileName  string              `json:"file_name,omitempty"`
	Preview   *PreviewReference   `json:"preview,omitempty"`
	Result    *SegmentationResult `json:"result,omitempty"`
	Status    Status              `json:"status"`
	Error     string              `json:"error,omitempty"`
	ErrorKind ErrorKind           `json:"error_kind,omitempty"`
	CanSubmit bool                `json:"can_submit"`
	UpdatedAt time.Time           `json:"updated_at"`
}

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WEBP = "image/webp"
	BMP  = "image/bmp"
)

// DefaultInlineType is used when an inline payload can't be sniffed.
const DefaultInlineType = PNG

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	WEBP: ".webp",
	BMP:  ".bmp",
}

// FileExt returns ".png" for unknown media types.
func FileExt(mediaType string) string {
	if ext, ok := GetImageFileExt[mediaType]; ok {
		return ext
	}
	return GetImageFileExt[PNG]
}
