package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/bearops/shepherd/pkg/launch"
	"github.com/bearops/shepherd/pkg/log"
	"github.com/bearops/shepherd/pkg/metrics"
	"github.com/bearops/shepherd/pkg/types"
	"github.com/bearops/shepherd/pkg/worker"
)

// Server is the trigger surface: it lets an operator or an upstream tool
// kick a reconciliation pass, start a deployment launch, and poll launch
// handles. It also serves the Prometheus metrics and a health endpoint.
type Server struct {
	worker   *worker.Worker
	launcher *launch.Launcher
	app      *fiber.App
	started  time.Time
}

// NewServer creates the API server around a worker and launcher.
func NewServer(w *worker.Worker, l *launch.Launcher) *Server {
	s := &Server{
		worker:   w,
		launcher: l,
		app:      fiber.New(fiber.Config{DisableStartupMessage: true}),
		started:  time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.healthz)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := s.app.Group("/api/v1")
	v1.Post("/sync", s.sync)
	v1.Post("/launches", s.createLaunch)
	v1.Get("/launches/:id", s.getLaunch)
}

// Start serves until Stop is called.
func (s *Server) Start(addr string) error {
	logger := log.WithComponent("api")
	logger.Info().Str("addr", addr).Msg("trigger API listening")
	return s.app.Listen(addr)
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() error {
	return s.app.Shutdown()
}

func (s *Server) healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

// sync runs one full reconciliation pass and returns its report. The pass
// runs synchronously: the report is the response.
func (s *Server) sync(c *fiber.Ctx) error {
	report := s.worker.SyncAll(context.Background())
	if report.Fatal != "" {
		return c.Status(fiber.StatusInternalServerError).JSON(report)
	}
	return c.JSON(report)
}

// LaunchRequest names the deployment to roll out.
type LaunchRequest struct {
	App         string `json:"app"`
	Tag         string `json:"tag"`
	Environment string `json:"environment"`
}

func (s *Server) createLaunch(c *fiber.Ctx) error {
	var req LaunchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.App == "" || req.Tag == "" || req.Environment == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "app, tag and environment are required",
		})
	}

	dep := types.Deployment{AppName: req.App, ImageTag: req.Tag, Environment: req.Environment}
	handle, err := s.launcher.Launch(dep.ID())
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(handle.Status())
}

func (s *Server) getLaunch(c *fiber.Ctx) error {
	handle, ok := s.launcher.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "launch not found",
		})
	}
	return c.JSON(handle.Status())
}
