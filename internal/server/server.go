package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mixelka/mailtriage/internal/database"
	"github.com/mixelka/mailtriage/internal/metrics"
	"github.com/mixelka/mailtriage/internal/pipeline"
	"github.com/mixelka/mailtriage/internal/report"
	"github.com/mixelka/mailtriage/pkg/models"
)

// Store is the analysis store the API reads and writes
type Store interface {
	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, filter database.ListFilter) ([]*models.Analysis, error)
	CountByUrgency(ctx context.Context) (map[models.Urgency]int, error)
}

// Processor runs uploads through the pipeline
type Processor interface {
	Process(ctx context.Context, source string, raw []byte) (*models.Analysis, error)
}

// Deps dependencies for creating a server
type Deps struct {
	Store      Store
	Processor  Processor
	Scanner    *pipeline.Scanner // optional, serves /api/scan
	Reports    *report.Emitter   // optional, serves report generation
	ReportDir  string
	Metrics    *metrics.Metrics // optional, serves /metrics
	Logger     *slog.Logger
	BodyLimit  int // max upload size in bytes
	UploadRate int // analyze requests per IP per minute, 0 disables limiting
}

// Server is the dashboard JSON API
type Server struct {
	app       *fiber.App
	store     Store
	processor Processor
	scanner   *pipeline.Scanner
	reports   *report.Emitter
	reportDir string
	logger    *slog.Logger
}

// New creates the server and registers routes
func New(deps Deps) *Server {
	s := &Server{
		store:     deps.Store,
		processor: deps.Processor,
		scanner:   deps.Scanner,
		reports:   deps.Reports,
		reportDir: deps.ReportDir,
		logger:    deps.Logger.With("component", "server"),
	}

	bodyLimit := deps.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 25 * 1024 * 1024
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "mailtriage",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestLogger(s.logger))

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if deps.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	api := s.app.Group("/api")
	api.Get("/records", s.handleListRecords)
	api.Get("/records/:id", s.handleGetRecord)
	api.Post("/records/:id/report", s.handleReport)
	api.Get("/stats", s.handleStats)
	api.Get("/scan", s.handleScan)
	api.Post("/scan", s.handleRescan)

	analyze := []fiber.Handler{s.handleAnalyze}
	if deps.UploadRate > 0 {
		analyze = append([]fiber.Handler{rateLimiter(deps.UploadRate)}, analyze...)
	}
	api.Post("/analyze", analyze...)

	return s
}

// App returns the fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler renders every error as {"error": message}
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
