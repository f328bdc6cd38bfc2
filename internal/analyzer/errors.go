package analyzer

import "errors"

var (
	// ErrNilRequest is returned when Analyze is called without a request or reader.
	ErrNilRequest = errors.New("analysis request has no input")

	// ErrEmptyData is returned when the dump has no records.
	ErrEmptyData = errors.New("profile contains no cost records")
)
