package reading

import "errors"

var (
	// ErrInvalidStyle is returned for an unknown timestamp style.
	ErrInvalidStyle = errors.New("reading: invalid timestamp style")

	// ErrInvalidTimezone is returned when the timezone cannot be loaded.
	ErrInvalidTimezone = errors.New("reading: invalid timezone")

	// ErrEncode wraps JSON encoding failures.
	ErrEncode = errors.New("reading: encode failed")
)
