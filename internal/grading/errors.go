package grading

import "errors"

var (
	// ErrInvalidSelection indicates a rubric selection references unknown, foreign, inactive or duplicate items.
	ErrInvalidSelection = errors.New("invalid rubric selection")
	// ErrNotFound indicates a referenced question, submission or related record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange indicates a point value outside of its allowed domain.
	ErrInvalidRange = errors.New("value out of range")
)
