package types

import "errors"

// Sentinel errors shared across the engine. Callers wrap them with
// fmt.Errorf("...: %w", err) and the API layer maps them to status codes.
var (
	// ErrNotFound is returned when a session, batch, agent, alert or
	// monitor config id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a create/update request carries
	// illegal fields (missing agent, empty caller list, bad thresholds).
	ErrValidation = errors.New("validation failed")

	// ErrIllegalTransition is returned when an operation would move an
	// entity out of a terminal status or mutate it in a locked status.
	ErrIllegalTransition = errors.New("illegal state transition")
)
