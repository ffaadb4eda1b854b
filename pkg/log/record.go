package log

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"snmpcarrier/pkg/format"
)

// Direction of a recorded datagram.
const (
	DirIn  = "<<"
	DirOut = ">>"
)

// Recorder appends every datagram passed to Record to a file as a
// timestamped hex dump.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
}

// NewRecorder opens path for appending, creating it if necessary.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &Recorder{file: f}, nil
}

// Record writes one datagram. A nil Recorder does nothing.
func (r *Recorder) Record(dir string, peer net.Addr, msg []byte) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := fmt.Fprintf(r.file, "%s %s %s %d\n%s", time.Now().UTC().Format(time.RFC3339Nano), dir, format.Peer(peer), len(msg), hex.Dump(msg))
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.file.Close()
}
