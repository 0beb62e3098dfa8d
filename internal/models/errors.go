package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSchema     = errors.New("schema error")
	ErrParse      = errors.New("parse error")
	ErrEmptyRange = errors.New("empty range")
)

// SchemaError reports a required column that a source does not provide.
type SchemaError struct {
	Source string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing required column"
	}
	if e.Source == "" {
		return fmt.Sprintf("schema error: %s %q", reason, e.Column)
	}
	return fmt.Sprintf("schema error in %s: %s %q", e.Source, reason, e.Column)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ParseError reports a cell that cannot be converted, such as an invalid
// timestamp component or a malformed measurement.
// Row is 1-based and excludes the header.
type ParseError struct {
	Source string
	Row    int
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse error in %s row %d: invalid %s %q", e.Source, e.Row, e.Field, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

type EmptyRangeError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *EmptyRangeError) Error() string {
	return fmt.Sprintf("empty range (%s, %s): %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Reason)
}

func (e *EmptyRangeError) Is(target error) bool { return target == ErrEmptyRange }
