package mocks

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Operation names accepted by MockSocketOps.Fail.
const (
	OpSocket      = "socket"
	OpGetsockopt  = "getsockopt"
	OpSetsockopt  = "setsockopt"
	OpSetNonblock = "setnonblock"
	OpBind        = "bind"
	OpGetsockname = "getsockname"
	OpSendto      = "sendto"
	OpRecvfrom    = "recvfrom"
	OpClose       = "close"
)

// MockDefaultBufferSize is the buffer size new mock sockets start with.
const MockDefaultBufferSize = 8192

// MockDatagram is one datagram sent or queued for receipt on a mock socket.
type MockDatagram struct {
	Data []byte
	Addr unix.Sockaddr
}

// MockSocket is the state of one mock socket.
type MockSocket struct {
	FD          int
	Family      int
	Type        int
	Options     map[int]int
	Nonblocking bool
	Closed      bool
	CloseCount  int
	Bound       unix.Sockaddr
	Sent        []MockDatagram
	Inbox       []MockDatagram
}

// MockSocketOps simulates socket system calls in memory. Failures can be
// injected per operation with Fail.
type MockSocketOps struct {
	mu      sync.Mutex
	nextFD  int
	sockets map[int]*MockSocket
	errs    map[string]error
}

// NewMockSocketOps creates a mock whose descriptors start at 100.
func NewMockSocketOps() *MockSocketOps {
	return &MockSocketOps{
		nextFD:  100,
		sockets: make(map[int]*MockSocket),
		errs:    make(map[string]error),
	}
}

// Fail makes every subsequent call of op return err. A nil err clears it.
func (m *MockSocketOps) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.errs, op)
		return
	}
	m.errs[op] = err
}

// AddSocket creates a socket as if it had been opened elsewhere.
func (m *MockSocketOps) AddSocket(family, sotype int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(family, sotype)
}

// Get returns a snapshot of the socket state of fd.
func (m *MockSocketOps) Get(fd int) (MockSocket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sockets[fd]
	if !ok {
		return MockSocket{}, false
	}
	cp := *s
	cp.Options = make(map[int]int, len(s.Options))
	for k, v := range s.Options {
		cp.Options[k] = v
	}
	cp.Sent = append([]MockDatagram(nil), s.Sent...)
	cp.Inbox = append([]MockDatagram(nil), s.Inbox...)
	return cp, true
}

// Count returns the number of sockets ever created.
func (m *MockSocketOps) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sockets)
}

// Deliver queues a datagram for Recvfrom on fd.
func (m *MockSocketOps) Deliver(fd int, data []byte, from unix.Sockaddr) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sockets[fd]; ok {
		s.Inbox = append(s.Inbox, MockDatagram{Data: append([]byte(nil), data...), Addr: from})
	}
}

func (m *MockSocketOps) addLocked(family, sotype int) int {
	fd := m.nextFD
	m.nextFD++
	m.sockets[fd] = &MockSocket{
		FD:     fd,
		Family: family,
		Type:   sotype,
		Options: map[int]int{
			unix.SO_RCVBUF: MockDefaultBufferSize,
			unix.SO_SNDBUF: MockDefaultBufferSize,
		},
	}
	return fd
}

func (m *MockSocketOps) lookup(op string, fd int) (*MockSocket, error) {
	if err := m.errs[op]; err != nil {
		return nil, err
	}
	s, ok := m.sockets[fd]
	if !ok || s.Closed {
		return nil, unix.EBADF
	}
	return s, nil
}

func (m *MockSocketOps) Socket(family, sotype int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs[OpSocket]; err != nil {
		return -1, err
	}
	return m.addLocked(family, sotype), nil
}

func (m *MockSocketOps) GetsockoptInt(fd, level, opt int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(OpGetsockopt, fd)
	if err != nil {
		return 0, err
	}
	return s.Options[opt], nil
}

func (m *MockSocketOps) SetsockoptInt(fd, level, opt, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(OpSetsockopt, fd)
	if err != nil {
		return err
	}
	s.Options[opt] = value
	return nil
}

func (m *MockSocketOps) SetNonblock(fd int, nonblocking bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(OpSetNonblock, fd)
	if err != nil {
		return err
	}
	s.Nonblocking = nonblocking
	return nil
}

func (m *MockSocketOps) Bind(fd int, sa unix.Sockaddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(OpBind, fd)
	if err != nil {
		return err
	}
	if s.Bound != nil {
		return unix.EINVAL
	}
	s.Bound = sa
	return nil
}

func (m *MockSocketOps) Getsockname(fd int) (unix.Sockaddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(OpGetsockname, fd)
	if err != nil {
		return nil, err
	}
	return s.Bound, nil
}

func (m *MockSocketOps) Sendto(fd int, p []byte, flags int, to unix.Sockaddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(OpSendto, fd)
	if err != nil {
		return err
	}
	s.Sent = append(s.Sent, MockDatagram{Data: append([]byte(nil), p...), Addr: to})
	return nil
}

func (m *MockSocketOps) Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(OpRecvfrom, fd)
	if err != nil {
		return 0, nil, err
	}
	if len(s.Inbox) == 0 {
		return 0, nil, unix.EAGAIN
	}
	d := s.Inbox[0]
	s.Inbox = s.Inbox[1:]
	n := copy(p, d.Data)
	return n, d.Addr, nil
}

func (m *MockSocketOps) Close(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sockets[fd]
	if !ok {
		return unix.EBADF
	}
	s.CloseCount++
	if err := m.errs[OpClose]; err != nil {
		return err
	}
	if s.Closed {
		return unix.EBADF
	}
	s.Closed = true
	return nil
}
