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
	"github.com/irdkwmnsb/webrtc-ingest/internal/negotiation"
	"github.com/irdkwmnsb/webrtc-ingest/internal/processing"
	"github.com/irdkwmnsb/webrtc-ingest/internal/recorder"
	"github.com/irdkwmnsb/webrtc-ingest/internal/repository/memory"
	"github.com/irdkwmnsb/webrtc-ingest/internal/service"
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

	pcConfig, err := cfg.WebRTC.PeerConnectionConfig.WebrtcConfiguration()
	if err != nil {
		slog.Error("invalid ICE server configuration", "error", err)
		os.Exit(2)
	}
	pionAPI, err := negotiation.NewAPI(cfg.WebRTC)
	if err != nil {
		slog.Error("failed to configure webrtc", "error", err)
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.Processing.FramesDir, os.ModePerm); err != nil {
		slog.Error("failed to create frames directory", "dir", cfg.Processing.FramesDir, "error", err)
		os.Exit(1)
	}

	opts := []negotiation.Option{
		negotiation.WithGatheringTimeout(cfg.Processing.GatheringTimeout()),
		negotiation.WithSweepInterval(cfg.Processing.SweepInterval()),
	}
	if cfg.Processing.RecordTracks {
		trackRecorder, err := recorder.NewTrackRecorder(cfg.Processing.RecordingsDir)
		if err != nil {
			slog.Error("failed to set up track recording", "error", err)
			os.Exit(1)
		}
		opts = append(opts, negotiation.WithTrackRecorder(trackRecorder))
	}
	if cfg.Processing.TrickleCandidates {
		opts = append(opts, negotiation.WithCandidateNotifier(
			processing.NewRelayNotifier(cfg.Processing.RelayURL, cfg.Server.RequestTimeout())))
	}

	metrics.StartTime.Set(float64(time.Now().Unix()))

	registry := service.NewSessionRegistry(memory.NewSessionRepository())
	engine := negotiation.NewEngine(registry,
		negotiation.NewPionFactory(pionAPI, pcConfig),
		recorder.NewDiskSink(cfg.Processing.FramesDir),
		opts...)
	defer engine.Close()

	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	server := negotiation.NewServer(app, engine, cfg.Processing.FramesDir, cfg.Server.RequestTimeout())
	server.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down processing server")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			slog.Error("failed to shut down http server", "error", err)
		}
	}()

	slog.Info("starting processing server",
		"addr", cfg.Processing.Addr(),
		"framesDir", cfg.Processing.FramesDir,
		"recordTracks", cfg.Processing.RecordTracks,
		"trickle", cfg.Processing.TrickleCandidates,
	)
	if err := app.Listen(cfg.Processing.Addr()); err != nil {
		slog.Error("processing server stopped", "error", err)
		os.Exit(1)
	}
}
