// Package main (in portal-subfolder) provides launch of the web portal
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/appconfig"
	"github.com/UnendingLoop/PolypSegmentation/internal/mwlogger"
	"github.com/UnendingLoop/PolypSegmentation/internal/segclient"
	"github.com/UnendingLoop/PolypSegmentation/internal/session"
	"github.com/UnendingLoop/PolypSegmentation/internal/storage"
	"github.com/UnendingLoop/PolypSegmentation/internal/transport"
	"github.com/UnendingLoop/PolypSegmentation/internal/web"
	"github.com/UnendingLoop/PolypSegmentation/internal/workflow"
	"github.com/robfig/cron/v3"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Printf("No .env file loaded (%v), using environment only", err)
	}
	settings := appconfig.Load(appConfig)

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(settings.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключиться к хранилищу превью
	connectStrategy := retry.Strategy{
		Attempts: 10,
		Delay:    3 * time.Second,
		Backoff:  1.5,
	}
	strg, err := storage.NewPreviewStorage(ctx, appConfig, settings.PreviewBackend, connectStrategy)
	if err != nil {
		log.Fatalf("Failed to init preview storage: %v", err)
	}

	// клиент сервера сегментации - один на все сессии
	client := segclient.New(settings.SegmentEndpoint, settings.SegmentTimeout)
	log.Printf("Segmentation endpoint: %s", settings.SegmentEndpoint)

	// реестр сессий: на каждую - свой контроллер
	registry := session.NewRegistry(func() *workflow.Controller {
		return workflow.NewController(client, strg, settings.PreviewKeyPrefix)
	})
	sweeper, err := session.StartSweeper(ctx, registry, settings.SessionSweepSpec, settings.SessionIdleTTL)
	if err != nil {
		log.Fatalf("Failed to schedule session sweep %q: %v", settings.SessionSweepSpec, err)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to parse page template: %v", err)
	}

	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewWorkflowHandler(sessionResolver(registry), renderer, settings.Theme)
	// сетапим сервер
	engine := ginext.New(settings.GinMode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.GET("/", handlers.Page)                                   // страница
	engine.POST("/workflow/image", handlers.SelectImage)             // выбор картинки
	engine.POST("/workflow/run", handlers.Run)                       // запуск сегментации
	engine.GET("/workflow/state", handlers.State)                    // текущее состояние
	engine.GET("/workflow/events", handlers.Events)                  // websocket с переходами состояния
	engine.GET("/workflow/result/download", handlers.DownloadResult) // скачать результат
	engine.GET("/preview/:id", handlers.Preview)                     // превью выбранной картинки

	srv := &http.Server{
		Addr:    ":" + settings.AppPort,
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул остановки
	<-ctx.Done()

	shutdown(srv, sweeper, registry, settings.ShutdownTimeout)
	log.Println("Exiting portal...")
}

func shutdown(srv *http.Server, sweeper *cron.Cron, registry *session.Registry, timeout time.Duration) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stopping HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Failed to shutdown server correctly:", err)
	}
	log.Println("HTTP server stopped.")

	// Stopping session sweeper
	select {
	case <-sweeper.Stop().Done():
		log.Println("Session sweeper stopped.")
	case <-shutdownCtx.Done():
		log.Println("Session sweeper did not stop in time")
	}

	// Releasing previews of all sessions
	registry.CloseAll(shutdownCtx)
	log.Println("Sessions released.")
}
