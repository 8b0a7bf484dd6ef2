package server

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mixelka/mailtriage/internal/database"
	"github.com/mixelka/mailtriage/internal/parser"
	"github.com/mixelka/mailtriage/internal/pipeline"
	"github.com/mixelka/mailtriage/pkg/models"
)

type failureResponse struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type batchResponse struct {
	Dir      string             `json:"dir"`
	Records  []*models.Analysis `json:"records"`
	Failures []failureResponse  `json:"failures"`
}

// listFilter reads urgency, q and limit query parameters
func listFilter(c *fiber.Ctx) (database.ListFilter, error) {
	filter := database.ListFilter{
		Query: strings.TrimSpace(c.Query("q")),
		Limit: c.QueryInt("limit", 0),
	}
	if filter.Limit < 0 {
		return filter, fiber.NewError(fiber.StatusBadRequest, "limit must not be negative")
	}
	if u := c.Query("urgency"); u != "" {
		urgency, err := models.ParseUrgency(u)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		filter.Urgency = urgency
	}
	return filter, nil
}

// handleListRecords handles GET /api/records
func (s *Server) handleListRecords(c *fiber.Ctx) error {
	filter, err := listFilter(c)
	if err != nil {
		return err
	}

	analyses, err := s.store.ListAnalyses(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"records": analyses, "count": len(analyses)})
}

// handleGetRecord handles GET /api/records/:id
func (s *Server) handleGetRecord(c *fiber.Ctx) error {
	a, err := s.store.GetAnalysis(c.UserContext(), c.Params("id"))
	if errors.Is(err, database.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "record not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(a)
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(c *fiber.Ctx) error {
	counts, err := s.store.CountByUrgency(c.UserContext())
	if err != nil {
		return err
	}

	total := 0
	byUrgency := fiber.Map{}
	byPriority := fiber.Map{}
	for _, u := range models.Urgencies {
		total += counts[u]
		byUrgency[string(u)] = counts[u]
		byPriority[u.Priority()] = counts[u]
	}

	return c.JSON(fiber.Map{
		"total":       total,
		"by_urgency":  byUrgency,
		"by_priority": byPriority,
	})
}

// handleAnalyze handles POST /api/analyze with an .eml in form field "file"
func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, `multipart form field "file" is required`)
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	source := filepath.Base(fh.Filename)
	analysis, err := s.processor.Process(c.UserContext(), source, raw)
	if err != nil {
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, perr.Error())
		}
		return err
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = analysis.AnalyzedAt
	}

	status := fiber.StatusCreated
	if err := s.store.CreateAnalysis(c.UserContext(), analysis); err != nil {
		if !errors.Is(err, database.ErrAlreadyExists) {
			return err
		}
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(analysis)
}

// handleReport handles POST /api/records/:id/report
func (s *Server) handleReport(c *fiber.Ctx) error {
	if s.reports == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "report generation is disabled")
	}

	a, err := s.store.GetAnalysis(c.UserContext(), c.Params("id"))
	if errors.Is(err, database.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "record not found")
	}
	if err != nil {
		return err
	}

	path, err := s.reports.Emit(a, s.reportDir)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"path":   path,
		"format": s.reports.Format(),
	})
}

// handleScan handles GET /api/scan: the email directory, cached
func (s *Server) handleScan(c *fiber.Ctx) error {
	if s.scanner == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "directory scanning is disabled")
	}

	filter, err := listFilter(c)
	if err != nil {
		return err
	}

	batch, err := s.scanner.Scan(c.UserContext())
	if err != nil {
		return err
	}
	s.persist(c, batch)

	return c.JSON(toBatchResponse(s.scanner.Dir(), batch, filter))
}

// handleRescan handles POST /api/scan: drop the cache and rescan
func (s *Server) handleRescan(c *fiber.Ctx) error {
	if s.scanner == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "directory scanning is disabled")
	}
	s.scanner.Invalidate()
	return s.handleScan(c)
}

// persist stores scanned records so they show up in /api/records
func (s *Server) persist(c *fiber.Ctx, batch *pipeline.Batch) {
	for _, a := range batch.Records {
		err := s.store.CreateAnalysis(c.UserContext(), a)
		if err != nil && !errors.Is(err, database.ErrAlreadyExists) {
			s.logger.Error("failed to store scanned analysis", "file", a.Source, "error", err)
		}
	}
}

func toBatchResponse(dir string, batch *pipeline.Batch, filter database.ListFilter) batchResponse {
	resp := batchResponse{
		Dir:      dir,
		Records:  FilterAnalyses(batch.Records, filter),
		Failures: []failureResponse{},
	}
	for _, f := range batch.Failures {
		resp.Failures = append(resp.Failures, failureResponse{Source: f.Source, Error: f.Err.Error()})
	}
	return resp
}

// FilterAnalyses applies a ListFilter to analyses in memory, keeping order
func FilterAnalyses(analyses []*models.Analysis, filter database.ListFilter) []*models.Analysis {
	q := strings.ToLower(strings.TrimSpace(filter.Query))

	out := []*models.Analysis{}
	for _, a := range analyses {
		if filter.Urgency != "" && a.Record.Urgency != filter.Urgency {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(a.Record.Subject), q) &&
			!strings.Contains(strings.ToLower(a.Record.From), q) &&
			!strings.Contains(strings.ToLower(a.Record.Summary), q) {
			continue
		}
		out = append(out, a)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}
