package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mixelka/mailtriage/pkg/models"
)

//go:embed templates/report.html
var templateFS embed.FS

// Format is the report document type
type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
)

// ParseFormat parses a report format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatHTML, FormatJSON:
		return f, nil
	case "":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// ReportWriteError reports an unwritable report destination
type ReportWriteError struct {
	Path string
	Err  error
}

func (e *ReportWriteError) Error() string {
	return fmt.Sprintf("write report %s: %v", e.Path, e.Err)
}

func (e *ReportWriteError) Unwrap() error {
	return e.Err
}

// Emitter writes one threat report document per analysis
type Emitter struct {
	format Format
	tmpl   *template.Template
	logger *slog.Logger
	now    func() time.Time
}

// NewEmitter creates an emitter for the given format
func NewEmitter(format Format, logger *slog.Logger) (*Emitter, error) {
	tmpl, err := template.New("report.html").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Emitter{
		format: format,
		tmpl:   tmpl,
		logger: logger.With("component", "report"),
		now:    time.Now,
	}, nil
}

// Format returns the emitter's document type
func (e *Emitter) Format() Format {
	return e.format
}

type document struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Analysis    *models.Analysis `json:"analysis"`
}

// Emit writes a report for a into dir, creating dir if needed, and returns
// the written path. An existing report is never overwritten.
func (e *Emitter) Emit(a *models.Analysis, dir string) (string, error) {
	now := e.now()
	doc := document{GeneratedAt: now, Analysis: a}

	content, err := e.render(doc)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &ReportWriteError{Path: dir, Err: err}
	}

	base := fmt.Sprintf("ThreatReport_%s_%s", strings.ToUpper(string(a.Record.Urgency)), now.Format("20060102_150405"))
	path, err := writeNew(dir, base, string(e.format), content)
	if err != nil {
		return "", err
	}

	e.logger.Info("report written", "path", path, "urgency", a.Record.Urgency, "source", a.Source)
	return path, nil
}

// Render returns the report document without writing it
func (e *Emitter) Render(a *models.Analysis) ([]byte, error) {
	return e.render(document{GeneratedAt: e.now(), Analysis: a})
}

func (e *Emitter) render(doc document) ([]byte, error) {
	var buf bytes.Buffer
	switch e.format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode report: %w", err)
		}
	default:
		if err := e.tmpl.Execute(&buf, doc); err != nil {
			return nil, fmt.Errorf("failed to render report: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// writeNew creates base.ext in dir, or base_N.ext when that name is taken
func writeNew(dir, base, ext string, content []byte) (string, error) {
	for n := 1; n < 100; n++ {
		name := base + "." + ext
		if n > 1 {
			name = fmt.Sprintf("%s_%d.%s", base, n, ext)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", &ReportWriteError{Path: path, Err: err}
		}

		if _, err := f.Write(content); err != nil {
			f.Close()
			return "", &ReportWriteError{Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			return "", &ReportWriteError{Path: path, Err: err}
		}
		return path, nil
	}
	return "", &ReportWriteError{Path: filepath.Join(dir, base+"."+ext), Err: os.ErrExist}
}
