package parser

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage is returned for zero-length input
var ErrEmptyMessage = errors.New("empty message")

// ParseError reports a malformed or unreadable email
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("parse email: %v", e.Err)
	}
	return fmt.Sprintf("parse email %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
