package station

import "errors"

// Sentinel errors for the publisher.
var (
	ErrNoSource     = errors.New("station: sensor source is required")
	ErrNoSession    = errors.New("station: topic session is required")
	ErrNoSerializer = errors.New("station: serializer is required")
	ErrNotPublished = errors.New("station: reading not published")
	ErrRunning      = errors.New("station: publisher already running")
)
