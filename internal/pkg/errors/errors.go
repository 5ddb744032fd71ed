package errors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalid             = errors.New("invalid")
	ErrTooMany             = errors.New("too many requests")
	ErrInternal            = errors.New("internal")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrCacheUnavailable    = errors.New("cache unavailable")
	ErrIndexCorruption     = errors.New("index corruption")
	ErrTimeout             = errors.New("timeout")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsProviderUnavailable reports whether err is a recoverable remote
// failure. Timeouts count: the caller is expected to degrade to a
// fallback rather than surface them.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrTimeout)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalid)
}
