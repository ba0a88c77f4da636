package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord marks a row missing a mandatory identifying field.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrInvalidRange marks a negative numeric measure.
	ErrInvalidRange = errors.New("invalid range")
	// ErrDuplicateRecord marks a second row for an already loaded unit and period.
	ErrDuplicateRecord = errors.New("duplicate record")
	// ErrMissingColumns is returned when a trip-level sheet lacks required columns.
	ErrMissingColumns = errors.New("missing columns")
	// ErrEmptySheet is returned when the input has no data rows.
	ErrEmptySheet = errors.New("empty sheet")
)

// FieldError names the row and field that failed normalization.
type FieldError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d: %s: %v", e.Row, e.Field, e.Err)
	}
	return fmt.Sprintf("row %d: %s=%q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
