package connectivity

import "errors"

// Domain-specific errors for the connectivity manager.
var (
	// ErrNoBroker is returned by New when Options.Broker is nil.
	ErrNoBroker = errors.New("connectivity: broker is required")

	// ErrNoCommandTopic is returned by New when no command topic is set.
	ErrNoCommandTopic = errors.New("connectivity: command topic is required")

	// ErrNoDataTopic is returned by New when no data topic is set.
	ErrNoDataTopic = errors.New("connectivity: data topic is required")

	// ErrInvalidRetryMode is returned by New for an unknown retry mode.
	ErrInvalidRetryMode = errors.New("connectivity: invalid retry mode")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("connectivity: already running")

	// ErrResolveFailed wraps broker host resolution failures.
	ErrResolveFailed = errors.New("connectivity: broker resolution failed")
)
