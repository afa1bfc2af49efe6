package web

import (
	"strings"
	"testing"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2031, 5, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func render(t *testing.T, r *Renderer, v View) string {
	t.Helper()
	out, err := r.Render(v)
	require.NoError(t, err)
	return string(out)
}

func TestRender_Pages(t *testing.T) {
	r := newTestRenderer(t)
	idle := model.State{Status: model.StatusIdle, CanSubmit: true}

	tests := []struct {
		page model.Page
		want string
	}{
		{model.PageHome, "Automated Polyp Segmentation"},
		{model.PageUpload, "Upload Colonoscopy Image"},
		{model.PageDemo, "Explore the Demo"},
		{model.PageAbout, "About this Project"},
		{model.Page("nope"), "Automated Polyp Segmentation"},
	}

	for _, tt := range tests {
		t.Run(string(tt.page), func(t *testing.T) {
			html := render(t, r, View{Page: tt.page, State: idle})
			require.Contains(t, html, tt.want)
			require.Contains(t, html, "2031")
			for _, p := range []string{"Home", "Upload", "Demo", "About"} {
				require.Contains(t, html, ">"+p+"</a>")
			}
		})
	}
}

func TestRender_Themes(t *testing.T) {
	r := newTestRenderer(t)

	sunrise := render(t, r, View{Page: model.PageAbout, Theme: model.ThemeSunrise})
	ocean := render(t, r, View{Page: model.PageAbout, Theme: model.ThemeOcean})
	fallback := render(t, r, View{Page: model.PageAbout, Theme: "neon"})

	require.Contains(t, sunrise, Palettes[model.ThemeSunrise].BarFrom)
	require.Contains(t, ocean, Palettes[model.ThemeOcean].BarFrom)
	require.Contains(t, ocean, "ocean-themed")
	require.Equal(t, sunrise, fallback)
}

func TestRender_UploadStates(t *testing.T) {
	r := newTestRenderer(t)

	// пусто
	html := render(t, r, View{Page: model.PageUpload, State: model.State{Status: model.StatusIdle, CanSubmit: true}})
	require.Contains(t, html, `accept="image/*"`)
	require.Contains(t, html, "Run Segmentation")
	require.NotContains(t, html, `type="submit" disabled`)
	require.NotContains(t, html, "Segmentation Result:")
	require.NotContains(t, html, "new WebSocket")

	// запрос в полете
	html = render(t, r, View{Page: model.PageUpload, State: model.State{
		FileName:  "colon.jpg",
		Preview:   &model.PreviewReference{ID: "abc", URL: "/preview/abc"},
		Status:    model.StatusSubmitting,
		CanSubmit: false,
	}})
	require.Contains(t, html, "colon.jpg")
	require.Contains(t, html, `src="/preview/abc"`)
	require.Contains(t, html, "Processing...")
	require.Contains(t, html, `type="submit" disabled`)
	require.Contains(t, html, "new WebSocket")

	// ошибка
	html = render(t, r, View{Page: model.PageUpload, State: model.State{
		Status:    model.StatusFailed,
		Error:     "server error: 500 <b>model error</b>",
		CanSubmit: true,
	}})
	require.Contains(t, html, "server error: 500 &lt;b&gt;model error&lt;/b&gt;")
}

func TestRender_Results(t *testing.T) {
	r := newTestRenderer(t)

	html := render(t, r, View{Page: model.PageUpload, State: model.State{
		Status:    model.StatusSucceeded,
		CanSubmit: true,
		Result:    &model.SegmentationResult{Kind: model.ResultURL, Source: "https://host/out.png"},
	}})
	require.Contains(t, html, `src="https://host/out.png"`)
	require.Contains(t, html, `href="/workflow/result/download"`)

	inline := "data:image/png;base64,iVBORw0KGgo="
	html = render(t, r, View{Page: model.PageUpload, State: model.State{
		Status:    model.StatusSucceeded,
		CanSubmit: true,
		Result:    &model.SegmentationResult{Kind: model.ResultInline, Source: inline, MediaType: model.PNG},
	}})
	require.Contains(t, html, `src="`+inline+`"`)

	// чужой javascript: URL не проходит
	html = render(t, r, View{Page: model.PageUpload, State: model.State{
		Status: model.StatusSucceeded,
		Result: &model.SegmentationResult{Kind: model.ResultURL, Source: "javascript:alert(1)"},
	}})
	require.False(t, strings.Contains(html, "javascript:alert"))
}
