// Package reactor defines the readiness reactor transports register their
// sockets with, and provides an epoll based implementation.
//
// A reactor multiplexes readiness notifications across many file
// descriptors and invokes the registered Callback on its own goroutine.
// Callbacks must not block.
package reactor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Events is a readiness bitmask.
type Events uint32

const (
	// Read means the descriptor can be read without blocking.
	Read Events = 1 << iota
	// Write means the descriptor can be written without blocking.
	Write
	// Error means the descriptor reported an error or hang-up.
	Error
)

// Readable reports whether the Read flag is set.
func (e Events) Readable() bool { return e&Read != 0 }

// Writable reports whether the Write flag is set.
func (e Events) Writable() bool { return e&Write != 0 }

// Failed reports whether the Error flag is set.
func (e Events) Failed() bool { return e&Error != 0 }

func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	if e.Readable() {
		parts = append(parts, "read")
	}
	if e.Writable() {
		parts = append(parts, "write")
	}
	if e.Failed() {
		parts = append(parts, "error")
	}
	if rest := e &^ (Read | Write | Error); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Callback receives the descriptor and the readiness flags reported for it.
type Callback func(fd int, ev Events)

// Token identifies one registration. The zero Token is never issued.
type Token struct {
	fd  int
	gen uint64
}

// NewToken builds a token for fd. Reactor implementations use the
// generation to tell registrations of a reused descriptor apart.
func NewToken(fd int, gen uint64) Token {
	return Token{fd: fd, gen: gen}
}

// FD returns the registered descriptor.
func (t Token) FD() int { return t.fd }

// Generation returns the registration generation.
func (t Token) Generation() uint64 { return t.gen }

// IsZero reports whether t is the zero Token.
func (t Token) IsZero() bool { return t == Token{} }

func (t Token) String() string {
	return fmt.Sprintf("fd=%d#%d", t.fd, t.gen)
}

// Reactor is the registration interface of an event loop.
type Reactor interface {
	// Register starts watching fd for the events in interest.
	Register(fd int, cb Callback, interest Events) (Token, error)
	// Update replaces the interest set of a registration.
	Update(tok Token, interest Events) error
	// Deregister stops watching the descriptor of tok.
	Deregister(tok Token) error
}

var (
	// ErrAlreadyRegistered is returned when registering a descriptor twice.
	ErrAlreadyRegistered = errors.New("descriptor already registered")
	// ErrUnknownToken is returned for tokens that are not (or no longer) registered.
	ErrUnknownToken = errors.New("unknown registration token")
	// ErrClosed is returned by a closed loop.
	ErrClosed = errors.New("reactor closed")
	// ErrUnsupported is returned by NewLoop on platforms without epoll.
	ErrUnsupported = errors.New("reactor not supported on this platform")
)

var (
	currentMu sync.Mutex
	current   Reactor
)

var newLoop = func() (Reactor, error) {
	l, err := NewLoop(LoopConfig{})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Current returns the process-wide reactor, creating a Loop on first use.
// Nothing runs the created Loop; use CurrentLoop to obtain it for Run.
func Current() (Reactor, error) {
	currentMu.Lock()
	defer currentMu.Unlock()

	if current != nil {
		return current, nil
	}

	r, err := newLoop()
	if err != nil {
		return nil, fmt.Errorf("creating default reactor: %w", err)
	}
	current = r
	return current, nil
}

// CurrentLoop returns the process-wide reactor as a *Loop so that it can be
// run. It fails if a reactor of another type was installed with SetCurrent.
func CurrentLoop() (*Loop, error) {
	r, err := Current()
	if err != nil {
		return nil, err
	}

	l, ok := r.(*Loop)
	if !ok {
		return nil, fmt.Errorf("current reactor is %T, not a *Loop", r)
	}
	return l, nil
}

// SetCurrent installs r as the process-wide reactor. Passing nil resets it
// so that the next Current call creates a fresh Loop.
func SetCurrent(r Reactor) {
	currentMu.Lock()
	current = r
	currentMu.Unlock()
}
