package httpapi

import (
	"net/http"
	"testing"

	"github.com/relaysys/portkern/internal/ipc/port"
)

func Test_StatusFor_Maps_Every_Sentinel_To_Its_Status(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{port.ErrNotFound, http.StatusNotFound},
		{port.ErrInvalidHandle, http.StatusNotFound},
		{port.ErrInvalidArgs, http.StatusBadRequest},
		{port.ErrBadUserMemory, http.StatusBadRequest},
		{port.ErrClosed, http.StatusConflict},
		{port.ErrDeleted, http.StatusGone},
		{port.ErrTimedOut, http.StatusRequestTimeout},
		{port.ErrInterrupted, http.StatusRequestTimeout},
		{port.ErrOutOfSlots, http.StatusInsufficientStorage},
		{port.ErrNoMemory, http.StatusInsufficientStorage},
		{port.ErrNotActive, http.StatusServiceUnavailable},
	}

	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v): got %d, want %d", c.err, got, c.want)
		}
	}
}

func Test_StatusFor_Unwraps_Port_Error(t *testing.T) {
	t.Parallel()

	wrapped := &port.Error{Op: "read", ID: 7, Err: port.ErrTimedOut}
	if got := statusFor(wrapped); got != http.StatusRequestTimeout {
		t.Fatalf("statusFor(wrapped): got %d, want %d", got, http.StatusRequestTimeout)
	}
	if got := errorCode(wrapped); got != "timed out" {
		t.Fatalf("errorCode(wrapped): got %q, want %q", got, "timed out")
	}
}

func Test_ErrorCode_Falls_Back_To_Internal_For_Unknown_Errors(t *testing.T) {
	t.Parallel()

	if got := errorCode(opaqueError{}); got != "internal" {
		t.Fatalf("errorCode: got %q, want %q", got, "internal")
	}
}

type opaqueError struct{}

func (opaqueError) Error() string { return "boom" }
