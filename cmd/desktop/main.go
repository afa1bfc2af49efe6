// Package main (in desktop-subfolder) provides launch of the desktop front end
package main

import (
	"context"
	"log"

	"github.com/UnendingLoop/PolypSegmentation/internal/appconfig"
	"github.com/UnendingLoop/PolypSegmentation/internal/desktop"
	"github.com/UnendingLoop/PolypSegmentation/internal/segclient"
	"github.com/UnendingLoop/PolypSegmentation/internal/storage/memstorage"
	"github.com/UnendingLoop/PolypSegmentation/internal/workflow"
	"github.com/wb-go/wbf/config"
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

	// одно окно - одна сессия, превью держим в памяти
	client := segclient.New(settings.SegmentEndpoint, settings.SegmentTimeout)
	ctrl := workflow.NewController(client, memstorage.New(), settings.PreviewKeyPrefix)
	log.Printf("Segmentation endpoint: %s", settings.SegmentEndpoint)

	desktop.CreateApp(ctrl, settings.Theme).Run()

	// окно закрыто - дожидаемся запроса и чистим превью
	ctx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()
	if err := ctrl.Wait(ctx); err != nil {
		log.Printf("Segmentation still running on exit: %v", err)
	}
	ctrl.Close(ctx)
	log.Println("Exiting desktop...")
}
