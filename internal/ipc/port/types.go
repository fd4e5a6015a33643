package port

import (
	"strconv"

	"github.com/relaysys/portkern/internal/ipc/payload"
	"github.com/relaysys/portkern/internal/ipc/sem"
)

// Reference constants. CapacityPorts must be a power of two: the
// ID-encoding scheme below relies on it for id%CapacityPorts.
const (
	CapacityPorts   = 4096
	MaxQueueDepth   = 4096
	MaxMessageBytes = payload.MaxBytes
	MaxNameLen      = 128
)

// ID is a port identity. Negative values never identify a live port;
// Invalid is the conventional "no port" value.
type ID int32

// Invalid is returned by operations that fail before a port id is known.
const Invalid ID = -1

func (id ID) String() string { return strconv.Itoa(int(id)) }

// slotIndex returns id's home slot: id%CapacityPorts == slot_index for
// every live port.
func (id ID) slotIndex() int {
	return int(id) % CapacityPorts
}

// message is one queued entry: a caller opcode plus an owned payload.
type message struct {
	code    int32
	payload *payload.Buffer
	len     int
}

// Flags mirror the original's PORT_FLAG_* bits, masked the same way
// port_write_etc/port_read_etc mask their flags argument.
type Flags uint32

const (
	// FlagTimeout requests the operation honor the supplied timeout
	// instead of blocking forever. A zero timeout with this flag set is
	// a non-blocking probe.
	FlagTimeout Flags = 1 << iota
	// FlagInterruptible allows the operation to return Interrupted if the
	// caller's context is canceled for a reason other than the timeout.
	FlagInterruptible
	// FlagUseUserMemcpy marks a copy as crossing the user/kernel boundary;
	// kept for parity with the original even though payload.Buffer treats
	// both copy modes identically on this platform.
	FlagUseUserMemcpy
)

// Info is the coarse snapshot exposed by GetInfo/GetNextInfo/DebugDump,
// grounded on struct port_info from the original.
type Info struct {
	ID         ID
	Owner      int64
	Name       string
	Capacity   int
	QueueCount int
	TotalCount uint64
	Closed     bool
}

// translateSemResult translates a sem.Result into the port-level error
// taxonomy: errors from a semaphore acquire are translated to
// port-level kinds.
func translateSemResult(r sem.Result) error {
	switch r {
	case sem.OK:
		return nil
	case sem.Deleted:
		return ErrDeleted
	case sem.TimedOut:
		return ErrTimedOut
	case sem.Interrupted:
		return ErrInterrupted
	default:
		return ErrInvalidArgs
	}
}
