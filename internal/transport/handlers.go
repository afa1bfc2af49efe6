// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
	"github.com/UnendingLoop/PolypSegmentation/internal/mwlogger"
	"github.com/UnendingLoop/PolypSegmentation/internal/segclient"
	"github.com/UnendingLoop/PolypSegmentation/internal/web"
	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/ginext"
)

// Workflow - то, что хендлерам нужно от контроллера сессии
type Workflow interface {
	SelectImage(ctx context.Context, img model.SelectedImage) (model.State, error)
	StartSegmentation(ctx context.Context) (model.State, error)
	Snapshot() model.State
	Subscribe() (<-chan model.State, func())
	OpenPreview(ctx context.Context, id string) (io.ReadCloser, string, error)
}

// SessionResolver returns the workflow of session id, creating one if needed.
// The returned id differs from the input when a new session was made.
type SessionResolver func(id string) (string, Workflow)

const (
	uploadPage   = "/?page=upload"
	writeTimeout = 10 * time.Second
)

// ThemeCookie хранит тему, выбранную через ?theme=, чтобы она пережила
// переходы по меню и редиректы после форм
const ThemeCookie = "polyp_theme"

type WorkflowHandler struct {
	sessions SessionResolver
	renderer *web.Renderer
	theme    model.Theme
	upgrader websocket.Upgrader
}

func NewWorkflowHandler(sessions SessionResolver, renderer *web.Renderer, theme model.Theme) *WorkflowHandler {
	return &WorkflowHandler{
		sessions: sessions,
		renderer: renderer,
		theme:    theme,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h WorkflowHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h WorkflowHandler) Page(ctx *ginext.Context) {
	wf := h.session(ctx)

	theme := h.theme
	if saved, err := ctx.Cookie(ThemeCookie); err == nil && saved != "" {
		theme = model.ParseTheme(saved)
	}
	if q := ctx.Query("theme"); q != "" {
		theme = model.ParseTheme(q)
		ctx.SetSameSite(http.SameSiteLaxMode)
		ctx.SetCookie(ThemeCookie, string(theme), 0, "/", "", false, true)
	}

	page, err := h.renderer.Render(web.View{
		Page:  model.ParsePage(ctx.Query("page")),
		Theme: theme,
		State: wf.Snapshot(),
	})
	if err != nil {
		log.Println("Failed to render page:", err)
		ctx.JSON(500, map[string]string{"error": model.ErrCommon500.Error()})
		return
	}

	ctx.Data(200, "text/html; charset=utf-8", page)
}

func (h WorkflowHandler) SelectImage(ctx *ginext.Context) {
	wf := h.session(ctx)

	imageFile, imageHeader, err := ctx.Request.FormFile(segclient.ImageField)
	if err != nil {
		ctx.JSON(400, map[string]string{"error": model.ErrEmptyUpload.Error()})
		return
	}
	defer closeFileFlow(imageFile)

	data, err := io.ReadAll(imageFile)
	if err != nil {
		log.Println("Failed to read uploaded image:", err)
		ctx.JSON(500, map[string]string{"error": model.ErrCommon500.Error()})
		return
	}

	img := model.SelectedImage{
		FileName:  imageHeader.Filename,
		MediaType: imageHeader.Header.Get("Content-Type"),
		Data:      data,
	}
	// браузер шлет octet-stream если не узнал тип - пусть определит контроллер
	if img.MediaType == "application/octet-stream" {
		img.MediaType = ""
	}

	st, err := wf.SelectImage(ctx.Request.Context(), img)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	if wantsJSON(ctx) {
		ctx.JSON(200, st)
		return
	}
	ctx.Redirect(http.StatusSeeOther, uploadPage)
}

func (h WorkflowHandler) Run(ctx *ginext.Context) {
	wf := h.session(ctx)

	st, err := wf.StartSegmentation(ctx.Request.Context())
	if err != nil {
		switch {
		case wantsJSON(ctx):
			ctx.JSON(errorCodeDefiner(err), map[string]any{"error": err.Error(), "state": st})
		case errors.Is(err, model.ErrNoImageSelected), errors.Is(err, model.ErrRequestInFlight):
			// ошибка уже в состоянии - страница ее покажет
			ctx.Redirect(http.StatusSeeOther, uploadPage)
		default:
			ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		}
		return
	}

	if wantsJSON(ctx) {
		ctx.JSON(http.StatusAccepted, st)
		return
	}
	ctx.Redirect(http.StatusSeeOther, uploadPage)
}

func (h WorkflowHandler) State(ctx *ginext.Context) {
	wf := h.session(ctx)
	ctx.JSON(200, wf.Snapshot())
}

// Events pushes a State JSON on every transition until the client goes away.
func (h WorkflowHandler) Events(ctx *ginext.Context) {
	wf := h.session(ctx)
	logger := mwlogger.LoggerFromContext(ctx.Request.Context())

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	events, unsubscribe := wf.Subscribe()
	defer unsubscribe()

	// читаем только чтобы заметить отключение клиента
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeState(conn, wf.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case st, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeTimeout))
				return
			}
			if err := writeState(conn, st); err != nil {
				logger.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		}
	}
}

func (h WorkflowHandler) DownloadResult(ctx *ginext.Context) {
	wf := h.session(ctx)

	res := wf.Snapshot().Result
	if res == nil {
		ctx.JSON(errorCodeDefiner(model.ErrResultNotReady), map[string]string{"error": model.ErrResultNotReady.Error()})
		return
	}

	if res.Kind == model.ResultURL {
		ctx.Redirect(http.StatusFound, res.Source)
		return
	}

	data, err := segclient.DecodeInline(*res)
	if err != nil {
		log.Println("Failed to decode inline result:", err)
		ctx.JSON(500, map[string]string{"error": model.ErrCommon500.Error()})
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="segmentation`+model.FileExt(res.MediaType)+`"`)
	ctx.Data(200, res.MediaType, data)
}

func (h WorkflowHandler) Preview(ctx *ginext.Context) {
	wf := h.session(ctx)
	id := ctx.Param("id")

	res, cType, err := wf.OpenPreview(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.Header().Set("Cache-Control", "no-store")
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for preview id %q: %v", n, id, err)
	}
}

// session resolves the caller's workflow and (re)issues the cookie if needed
func (h WorkflowHandler) session(ctx *ginext.Context) Workflow {
	cookie, _ := ctx.Cookie(mwlogger.SessionCookie)

	id, wf := h.sessions(cookie)
	if id != cookie {
		ctx.SetSameSite(http.SameSiteLaxMode)
		ctx.SetCookie(mwlogger.SessionCookie, id, 0, "/", "", false, true)
	}
	return wf
}

func wantsJSON(ctx *ginext.Context) bool {
	return strings.Contains(ctx.GetHeader("Accept"), "application/json")
}

func writeState(conn *websocket.Conn, st model.State) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(st)
}
