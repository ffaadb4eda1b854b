// Package pipeio provides the console streams used by the send command.
package pipeio

import (
	"io"
	"os"
	"sync"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// Stdio provides a ReadWriteCloser over console streams.
// It uses cancelable reading from stdin when supported, allowing reads
// to be interrupted via Close. Writes are serialized so that output of the
// event loop does not interleave with prompts.
type Stdio struct {
	stdin            io.Reader
	cancellableStdin cancelreader.CancelReader

	mu     sync.Mutex
	stdout io.Writer
}

// NewStdio creates a new Stdio with cancelable stdin reading if supported by
// the platform. Nil streams default to os.Stdin and os.Stdout.
func NewStdio(stdin io.Reader, stdout io.Writer) *Stdio {
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	out := Stdio{
		stdin:  stdin,
		stdout: stdout,
	}

	cancellableStdin, err := cancelreader.NewReader(stdin)
	if err != nil {
		return &out
	}

	out.cancellableStdin = cancellableStdin
	return &out
}

// Read reads from stdin, using the cancelable reader if available.
func (s *Stdio) Read(p []byte) (n int, err error) {
	if s.cancellableStdin != nil {
		return s.cancellableStdin.Read(p)
	}

	return s.stdin.Read(p)
}

// Write writes to stdout.
func (s *Stdio) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stdout.Write(p)
}

// Interactive reports whether stdin is a terminal.
func (s *Stdio) Interactive() bool {
	f, ok := s.stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Close cancels any pending reads from stdin if using a cancelable reader.
func (s *Stdio) Close() error {
	if s.cancellableStdin != nil {
		s.cancellableStdin.Cancel()
	}
	return nil
}
