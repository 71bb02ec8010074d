package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/irdkwmnsb/webrtc-ingest/internal/config"
	"github.com/irdkwmnsb/webrtc-ingest/internal/logging"
	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
	"github.com/irdkwmnsb/webrtc-ingest/internal/processing"
	"github.com/irdkwmnsb/webrtc-ingest/internal/signalling"
)

func main() {
	configDir := flag.String("config", "conf", "directory with server/processing/webrtc/log config files")
	flag.Parse()

	manager, err := config.NewManager(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer manager.Close()

	cfg := manager.Get()
	level, err := config.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	levelVar := logging.Setup(os.Stderr, level)
	manager.SetUpdateCallback(func(updated *config.AppConfig) {
		if l, err := config.ParseLogLevel(updated.Log.Level); err == nil {
			levelVar.Set(l)
			slog.Info("log level updated", "level", l)
		} else {
			slog.Warn("ignoring invalid log level", "error", err)
		}
	})

	metrics.StartTime.Set(float64(time.Now().Unix()))

	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	processor := processing.NewClient(cfg.Server.ProcessingURL, cfg.Server.RequestTimeout())
	server := signalling.NewServer(&cfg.Server, app, processor)
	defer server.Close()
	server.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down signalling server")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			slog.Error("failed to shut down http server", "error", err)
		}
	}()

	slog.Info("starting signalling server", "addr", cfg.Server.Addr(), "processingUrl", cfg.Server.ProcessingURL)
	if cfg.Server.TLSCrtFile != nil && cfg.Server.TLSKeyFile != nil {
		slog.Info("running TLS http server")
		err = app.ListenTLS(cfg.Server.Addr(), *cfg.Server.TLSCrtFile, *cfg.Server.TLSKeyFile)
	} else {
		err = app.Listen(cfg.Server.Addr())
	}
	if err != nil {
		slog.Error("signalling server stopped", "error", err)
		os.Exit(1)
	}
}
