package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("municipality not found")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrInsufficientData = errors.New("insufficient data")
	ErrLoad             = errors.New("load error")
)

// LoadError describes why a dataset source was rejected. Row is 1-based and
// counts data rows, not the header; zero means the error is not row specific.
type LoadError struct {
	Source string
	Row    int
	Column string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load error")
	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LoadError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrLoad, e.Err}
	}
	return []error{ErrLoad}
}

func NewLoadError(source string, row int, column, reason string) *LoadError {
	return &LoadError{Source: source, Row: row, Column: column, Reason: reason}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidQuery(err error) bool {
	return errors.Is(err, ErrInvalidQuery)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsLoadError(err error) bool {
	return errors.Is(err, ErrLoad)
}
