// Package web renders the portal page
package web

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
)

//go:embed templates/page.html
var templatesFS embed.FS

// Palette - цвета одной темы, шаблон один на все темы
type Palette struct {
	Name           string
	BackgroundFrom string
	BackgroundTo   string
	BarFrom        string
	BarTo          string
	Button         string
	ButtonActive   string
	Accent         string
}

var Palettes = map[model.Theme]Palette{
	model.ThemeSunrise: {
		Name:           "sunrise",
		BackgroundFrom: "#ffe4e6",
		BackgroundTo:   "#fefce8",
		BarFrom:        "#fb923c",
		BarTo:          "#ec4899",
		Button:         "#FC4100",
		ButtonActive:   "#B6F500",
		Accent:         "#ea580c",
	},
	model.ThemeOcean: {
		Name:           "ocean",
		BackgroundFrom: "#e0f2fe",
		BackgroundTo:   "#f0fdfa",
		BarFrom:        "#0ea5e9",
		BarTo:          "#14b8a6",
		Button:         "#0369a1",
		ButtonActive:   "#22c55e",
		Accent:         "#0284c7",
	},
}

type View struct {
	Page  model.Page
	Theme model.Theme
	State model.State
}

type pageData struct {
	Page         model.Page
	Pages        []model.Page
	Palette      Palette
	State        model.State
	ResultURL    string
	ResultInline template.URL
	Year         int
}

type Renderer struct {
	tmpl *template.Template
	now  func() time.Time
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("page.html").
		Funcs(template.FuncMap{"title": title}).
		ParseFS(templatesFS, "templates/page.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, now: time.Now}, nil
}

// Render returns the complete page for v.
func (r *Renderer) Render(v View) ([]byte, error) {
	data := pageData{
		Page:    model.ParsePage(string(v.Page)),
		Pages:   model.Pages,
		Palette: Palettes[model.ParseTheme(string(v.Theme))],
		State:   v.State,
		Year:    r.now().Year(),
	}

	if res := v.State.Result; res != nil {
		switch {
		// data: URI собираем сами, остальное экранирует html/template
		case res.Kind == model.ResultInline && strings.HasPrefix(res.Source, "data:image/"):
			data.ResultInline = template.URL(res.Source)
		default:
			data.ResultURL = res.Source
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func title(p model.Page) string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
