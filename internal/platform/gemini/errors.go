package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrNoTasks is returned when Plan is called without titles.
	ErrNoTasks = errors.New("no tasks to plan")

	// ErrInvalidResponse is returned when the model answer cannot be parsed
	// or is malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the prompt.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned when retries are exhausted.
	ErrTransientFailure = errors.New("transient error during planning")

	// ErrInvalidConfig is returned when the planner configuration is invalid.
	ErrInvalidConfig = errors.New("invalid planner configuration")
)
