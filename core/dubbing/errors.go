package dubbing

import (
	"errors"
	"fmt"
)

// Sentinel errors. The HTTP layer maps them to status codes with errors.Is.
var (
	ErrMissingFile          = errors.New("missing file")
	ErrFileTooLarge         = errors.New("file too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrAssetNotFound        = errors.New("video not found")
	ErrUnknownVoice         = errors.New("unknown voice")
	ErrRequestNotFound      = errors.New("request not found")
	ErrJobInFlight          = errors.New("dubbing job in flight")
	ErrJobNotRunning        = errors.New("dubbing job not running")

	// Cancellation causes, stored verbatim as the failure message.
	ErrJobCancelled = errors.New("dubbing job cancelled")
)

// ValidationError carries a user-visible message for a caller mistake.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, format string, args ...interface{}) error {
	return &ValidationError{Err: err, Message: fmt.Sprintf(format, args...)}
}
