package nlp

import (
	"errors"
	"fmt"
)

// ErrDegenerateEmbedding means a text had nothing to embed, so its
// similarity was reported as zero
var ErrDegenerateEmbedding = errors.New("degenerate embedding: no embeddable tokens")

// ExtractionError reports a failed NLP operation. Callers can still use the
// degraded features returned alongside it.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
