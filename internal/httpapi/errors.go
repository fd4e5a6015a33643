package httpapi

import (
	"errors"
	"net/http"

	"github.com/relaysys/portkern/internal/ipc/port"
)

// statusFor maps the stable port error taxonomy onto HTTP status codes
// for the syscall boundary.
func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, port.ErrInvalidHandle):
		return http.StatusNotFound
	case errors.Is(err, port.ErrInvalidArgs):
		return http.StatusBadRequest
	case errors.Is(err, port.ErrBadUserMemory):
		return http.StatusBadRequest
	case errors.Is(err, port.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, port.ErrDeleted):
		return http.StatusGone
	case errors.Is(err, port.ErrTimedOut):
		return http.StatusRequestTimeout
	case errors.Is(err, port.ErrInterrupted):
		return http.StatusRequestTimeout
	case errors.Is(err, port.ErrOutOfSlots):
		return http.StatusInsufficientStorage
	case errors.Is(err, port.ErrNoMemory):
		return http.StatusInsufficientStorage
	case errors.Is(err, port.ErrNotActive):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine-readable body field, the sentinel's own
// message with the "port: " prefix trimmed.
func errorCode(err error) string {
	for _, e := range []error{
		port.ErrNotActive, port.ErrInvalidHandle, port.ErrInvalidArgs,
		port.ErrNoMemory, port.ErrOutOfSlots, port.ErrClosed, port.ErrDeleted,
		port.ErrTimedOut, port.ErrInterrupted, port.ErrNotFound, port.ErrBadUserMemory,
	} {
		if errors.Is(err, e) {
			return e.Error()[len("port: "):]
		}
	}
	return "internal"
}
