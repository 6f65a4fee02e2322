package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/canvas-relay/config"
	"github.com/example/canvas-relay/modules/activity"
	"github.com/example/canvas-relay/modules/api"
	"github.com/example/canvas-relay/modules/canvas"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	logLevel := mono.LogLevelInfo
	if cfg.Quiet {
		logLevel = mono.LogLevelError
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// Create modules
	canvasModule := canvas.NewModule(cfg, logger.WithModule("canvas"))
	activityModule := activity.NewModule(logger.WithModule("activity"), activity.DefaultCapacity)
	apiModule := api.NewModule(cfg, logger.WithModule("api"))

	// The registry and activity log are in-process state, not services,
	// so they are handed to the API module directly.
	apiModule.SetRegistry(canvasModule.Registry())
	apiModule.SetActivity(activityModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - canvas: rooms, sessions and reaper (ServiceProviderModule + EventEmitterModule)
	// - activity: lifecycle log (EventConsumerModule)
	// - api: Fiber HTTP/WebSocket server, depends on canvas
	app.Register(canvasModule)
	app.Register(activityModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	logger.Info("Canvas relay started",
		"addr", cfg.Addr(),
		"websocket", "ws://"+cfg.Addr()+"/ws",
		"defaultRoom", cfg.DefaultRoom,
		"reapInterval", cfg.ReapInterval.String(),
		"roomRetention", cfg.RoomRetention.String())
	logger.Info("HTTP endpoints",
		"endpoints", []string{"GET /health", "GET /api/v1/rooms", "GET /api/v1/activity"})

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}
