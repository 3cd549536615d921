package mission

import "errors"

var (
	// ErrMaxSteps is returned when a goal is not reached within the
	// configured number of control cycles.
	ErrMaxSteps = errors.New("mission: step limit reached before arrival")

	// ErrInvalidGoal rejects goals holding NaN or Inf.
	ErrInvalidGoal = errors.New("mission: goal must be finite")

	// ErrNotInitialized is returned by GoTo before Init.
	ErrNotInitialized = errors.New("mission: runner not initialized")
)
