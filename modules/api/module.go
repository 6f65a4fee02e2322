package api

import (
	"context"
	"fmt"
	"time"

	"github.com/example/canvas-relay/config"
	"github.com/example/canvas-relay/modules/activity"
	"github.com/example/canvas-relay/modules/canvas"
	"github.com/example/canvas-relay/modules/wsserver"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// ActivitySource provides the recorded room lifecycle activity.
type ActivitySource interface {
	Entries() []activity.Entry
	Counters() activity.Counters
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	app           *fiber.App
	canvasAdapter canvas.CanvasPort
	registry      *canvas.Registry
	activity      ActivitySource
	ws            *wsserver.Handlers
	cfg           config.Config
	logger        types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg config.Config, logger types.Logger) *APIModule {
	return &APIModule{
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"canvas"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "canvas":
		m.canvasAdapter = canvas.NewCanvasAdapter(container)
	}
}

// SetRegistry sets the room registry WebSocket sessions are created from
// (called from main.go).
func (m *APIModule) SetRegistry(registry *canvas.Registry) {
	m.registry = registry
}

// SetActivity sets the activity log (called from main.go).
func (m *APIModule) SetActivity(source ActivitySource) {
	m.activity = source
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.canvasAdapter == nil {
		return fmt.Errorf("canvas adapter dependency not set")
	}
	if m.registry == nil {
		return fmt.Errorf("room registry not set")
	}
	if m.activity == nil {
		return fmt.Errorf("activity source not set")
	}

	m.app = m.newApp()

	// Start server in goroutine with startup error detection
	addr := m.cfg.Addr()
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", addr)
	return nil
}

// newApp builds the Fiber app with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	m.ws = wsserver.NewHandlers(m.registry, m.logger.WithModule("wsserver"), wsserver.Options{
		MessageRate:   m.cfg.MessageRate,
		MessageBurst:  m.cfg.MessageBurst,
		MaxFrameBytes: int64(m.cfg.MaxFrameBytes),
		PingInterval:  m.cfg.PingInterval,
	})

	app := fiber.New(fiber.Config{
		AppName:               "Canvas Relay",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(m.loggerMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.cfg.AllowedOrigins,
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	m.setupRoutes(app)
	return app
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server...")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"addr": m.cfg.Addr(),
	}
	if m.ws != nil {
		details["connections"] = m.ws.Active()
		details["rate_limited_frames"] = m.ws.RateLimited()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// errorHandler handles Fiber errors.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func (m *APIModule) loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		m.logger.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start).String())
		return err
	}
}
