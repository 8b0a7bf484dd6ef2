package pipeline

import (
	"context"
	"sync"
	"time"
)

// Scanner caches ProcessDir results for a directory so that repeated
// dashboard requests within ttl do not rerun the models
type Scanner struct {
	pipeline *Pipeline
	dir      string
	ttl      time.Duration

	mu         sync.Mutex
	batch      *Batch
	expiration time.Time
	now        func() time.Time
}

// NewScanner creates a scanner over dir. A ttl of zero disables caching.
func NewScanner(p *Pipeline, dir string, ttl time.Duration) *Scanner {
	return &Scanner{
		pipeline: p,
		dir:      dir,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Dir returns the scanned directory
func (s *Scanner) Dir() string {
	return s.dir
}

// Scan returns the cached batch or rescans the directory
func (s *Scanner) Scan(ctx context.Context) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.batch != nil && s.now().Before(s.expiration) {
		return s.batch, nil
	}

	batch, err := s.pipeline.ProcessDir(ctx, s.dir)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		s.batch = batch
		s.expiration = s.now().Add(s.ttl)
	}
	return batch, nil
}

// Invalidate drops the cached batch
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.batch = nil
	s.mu.Unlock()
}
