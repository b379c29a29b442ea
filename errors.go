package compositor

import "errors"

// Errors
var (
	// ErrAsleep is returned by mutating operations while the owning
	// compositor is asleep.
	ErrAsleep = errors.New("compositor: asleep")

	// ErrNotActive is returned by Use and Swap on an inactive output.
	ErrNotActive = errors.New("compositor: output is not active")

	// ErrUnknownMode is returned by Activate when the mode does not belong
	// to the output's mode list.
	ErrUnknownMode = errors.New("compositor: mode does not belong to output")

	// ErrNilHandle is returned when a required handle or argument is nil.
	ErrNilHandle = errors.New("compositor: nil handle")

	// ErrHardware wraps display hardware acquisition and flip failures.
	ErrHardware = errors.New("compositor: display hardware unavailable")

	// ErrExhausted is returned when buffer or texture allocation fails.
	ErrExhausted = errors.New("compositor: resource allocation failed")

	// ErrInit is returned when context or framebuffer construction fails.
	ErrInit = errors.New("compositor: initialization failed")
)
