package socket

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultBufferSize is the minimum receive and send buffer size, in bytes,
// the transports ask the kernel for.
const DefaultBufferSize = 131070

// BufferChange records one buffer that TuneBuffers enlarged.
type BufferChange struct {
	Option string
	From   int
	To     int
}

// TuneResult is the outcome of TuneBuffers. Err joins every failure.
type TuneResult struct {
	Changes []BufferChange
	Err     error
}

// OK reports whether every buffer could be inspected and, if needed, raised.
func (r TuneResult) OK() bool {
	return r.Err == nil
}

var bufferOptions = []struct {
	name string
	opt  int
}{
	{"SO_RCVBUF", unix.SO_RCVBUF},
	{"SO_SNDBUF", unix.SO_SNDBUF},
}

// TuneBuffers raises the receive and send buffers of fd to size if they are
// smaller. Each buffer is handled independently and failures are only
// reported in the result.
func TuneBuffers(ops Ops, fd, size int) TuneResult {
	var res TuneResult
	var errs []error

	for _, b := range bufferOptions {
		cur, err := ops.GetsockoptInt(fd, unix.SOL_SOCKET, b.opt)
		if err != nil {
			errs = append(errs, fmt.Errorf("getsockopt(%s): %w", b.name, err))
			continue
		}
		if cur >= size {
			continue
		}
		if err := ops.SetsockoptInt(fd, unix.SOL_SOCKET, b.opt, size); err != nil {
			errs = append(errs, fmt.Errorf("setsockopt(%s, %d): %w", b.name, size, err))
			continue
		}
		res.Changes = append(res.Changes, BufferChange{Option: b.name, From: cur, To: size})
	}

	res.Err = errors.Join(errs...)
	return res
}
