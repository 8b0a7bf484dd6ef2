package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mboxlib "github.com/emersion/go-mbox"
	"golang.org/x/sync/errgroup"

	"github.com/mixelka/mailtriage/internal/parser"
	"github.com/mixelka/mailtriage/pkg/models"
)

// Failure is an email that produced no record
type Failure struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

// Batch holds the outcome of a multi-email run
type Batch struct {
	Records  []*models.Analysis
	Failures []Failure
}

// Result is the outcome of one unit of a batch
type Result struct {
	Source   string
	Analysis *models.Analysis
	Err      error
}

// ProcessDir processes every .eml file directly inside dir. A bad file is
// logged and listed in Failures; it never fails the batch. Records are
// ordered most recently created first.
func (p *Pipeline) ProcessDir(ctx context.Context, dir string) (*Batch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	results := make([]Result, len(paths))

	g := errgroup.Group{}
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			results[i].Source = filepath.Base(path)
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Analysis, results[i].Err = p.ProcessFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	batch := p.collect(results)
	p.logger.Info("directory processed",
		"dir", dir,
		"records", len(batch.Records),
		"failures", len(batch.Failures),
	)
	return batch, nil
}

// ProcessMbox processes every message of an mbox archive in order. A
// message that fails to parse is listed in Failures; a broken archive
// stops the run at the point of damage.
func (p *Pipeline) ProcessMbox(ctx context.Context, path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mbox %s: %w", path, err)
	}
	defer f.Close()

	base := filepath.Base(path)
	var results []Result

	mr := mboxlib.NewReader(f)
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		source := fmt.Sprintf("mbox:%s#%d", base, n)

		r, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			results = append(results, Result{Source: source, Err: &parser.ParseError{Source: source, Err: err}})
			break
		}

		raw, err := io.ReadAll(r)
		if err != nil {
			results = append(results, Result{Source: source, Err: &parser.ParseError{Source: source, Err: err}})
			break
		}

		analysis, err := p.Process(ctx, source, raw)
		results = append(results, Result{Source: source, Analysis: analysis, Err: err})
	}

	batch := p.collect(results)
	p.logger.Info("mbox processed",
		"file", base,
		"records", len(batch.Records),
		"failures", len(batch.Failures),
	)
	return batch, nil
}

// collect partitions results and orders records by creation time, newest
// first, with the source name breaking ties
func (p *Pipeline) collect(results []Result) *Batch {
	batch := &Batch{
		Records:  []*models.Analysis{},
		Failures: []Failure{},
	}
	for _, r := range results {
		if r.Err != nil {
			p.logger.Error("failed to process email", "file", r.Source, "error", r.Err)
			batch.Failures = append(batch.Failures, Failure{Source: r.Source, Err: r.Err})
			continue
		}
		batch.Records = append(batch.Records, r.Analysis)
	}

	sort.SliceStable(batch.Records, func(i, j int) bool {
		a, b := batch.Records[i], batch.Records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Source < b.Source
	})
	return batch
}
