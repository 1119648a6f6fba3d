package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrRunInProgress is returned when a manual run overlaps a scheduled one
	ErrRunInProgress = errors.New("reminder run already in progress")
)
