// Package web provides the controller's HTTP API and telemetry stream.
package web

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	hlog "github.com/teslashibe/go-hopper/internal/log"
	"github.com/teslashibe/go-hopper/pkg/bridge"
	"github.com/teslashibe/go-hopper/pkg/hub"
	"github.com/teslashibe/go-hopper/pkg/params"
)

// Server is the controller web server
type Server struct {
	app     *fiber.App
	port    string
	log     *slog.Logger
	started time.Time

	params    *params.Store
	bridge    *bridge.Bridge
	telemetry *hub.Hub
}

// NewServer creates the web server. Robots connect through b; telemetry is
// streamed from tel.
func NewServer(port string, store *params.Store, b *bridge.Bridge, tel *hub.Hub) *Server {
	s := &Server{
		port:      port,
		log:       hlog.With("component", "web"),
		started:   time.Now(),
		params:    store,
		bridge:    b,
		telemetry: tel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Hopper Controller",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/params", s.handleGetParams)
	api.Put("/params", s.handlePutParams)
	api.Post("/params/reset", s.handleResetParams)
	api.Post("/enable", s.handleEnable)
	api.Post("/disable", s.handleDisable)
	b.RegisterAPIRoutes(api)

	// Robot endpoint
	b.RegisterRoutes(app)

	// WebSocket upgrade middleware
	app.Use("/ws/telemetry", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/telemetry", websocket.New(s.handleTelemetryWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the web server. The telemetry hub must already be running.
func (s *Server) Start() error {
	s.log.Info("controller listening", "url", fmt.Sprintf("http://localhost:%s", s.port))
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.log.Error("web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
