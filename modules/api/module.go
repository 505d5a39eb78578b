package api

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/workspace-chat/config"
	"github.com/example/workspace-chat/modules/activity"
	"github.com/example/workspace-chat/modules/chat"
)

// SessionHost gives the WebSocket edge access to the live room engine.
// *chat.Module satisfies it.
type SessionHost interface {
	Registry() *chat.Registry
	ConnectionOptions() chat.ConnectionOptions
	SessionOptions() chat.SessionOptions
}

// Module is the HTTP and WebSocket edge of the chat service.
type Module struct {
	cfg    config.Config
	host   SessionHost
	chat   chat.ChatPort
	stats  activity.StatsPort
	logger types.Logger

	app  *fiber.App
	addr string

	// sessionCtx is cancelled on Stop to disconnect every WebSocket session
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	sessions      sync.WaitGroup
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the API module. host serves the WebSocket sessions.
func NewModule(cfg config.Config, host SessionHost, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		host:   host,
		logger: logger.WithModule("api"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"chat", "activity"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		m.chat = chat.NewChatAdapter(container)
	case "activity":
		m.stats = activity.NewStatsAdapter(container)
	}
}

// Start builds the Fiber app and starts serving.
func (m *Module) Start(_ context.Context) error {
	if m.chat == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}
	if m.stats == nil {
		return fmt.Errorf("activity adapter dependency not set")
	}
	if m.host == nil {
		return fmt.Errorf("session host not set")
	}

	m.sessionCtx, m.cancelSession = context.WithCancel(context.Background())
	m.app = m.newApp()

	ln, err := net.Listen("tcp", m.cfg.Addr())
	if err != nil {
		m.cancelSession()
		return fmt.Errorf("HTTP server failed to start: %w", err)
	}
	m.addr = ln.Addr().String()

	go func() {
		if err := m.app.Listener(ln); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", m.addr)
	return nil
}

// Stop disconnects every WebSocket session and shuts down the server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.cancelSession()

	done := make(chan struct{})
	go func() {
		m.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("WebSocket sessions still open at shutdown")
	}

	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.addr,
		},
	}
}

// Addr returns the address the server listens on once started.
func (m *Module) Addr() string {
	return m.addr
}

func (m *Module) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Workspace Chat",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.cfg.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.registerRoutes(app)
	return app
}
