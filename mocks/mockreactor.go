package mocks

import (
	"fmt"
	"sync"

	"snmpcarrier/pkg/reactor"
)

// MockRegistration is one descriptor registered with a MockReactor.
type MockRegistration struct {
	Token    reactor.Token
	Callback reactor.Callback
	Interest reactor.Events
}

// MockReactor records registrations in memory and lets tests fire
// readiness notifications by hand.
type MockReactor struct {
	mu   sync.Mutex
	regs map[int]*MockRegistration
	gen  uint64

	RegisterCalls   int
	UpdateCalls     int
	DeregisterCalls int
	Updates         []reactor.Events

	RegisterErr   error
	UpdateErr     error
	DeregisterErr error
}

// NewMockReactor creates an empty mock reactor.
func NewMockReactor() *MockReactor {
	return &MockReactor{regs: make(map[int]*MockRegistration)}
}

// Register implements reactor.Reactor.
func (m *MockReactor) Register(fd int, cb reactor.Callback, interest reactor.Events) (reactor.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RegisterCalls++
	if m.RegisterErr != nil {
		return reactor.Token{}, m.RegisterErr
	}
	if _, exists := m.regs[fd]; exists {
		return reactor.Token{}, reactor.ErrAlreadyRegistered
	}

	m.gen++
	tok := reactor.NewToken(fd, m.gen)
	m.regs[fd] = &MockRegistration{Token: tok, Callback: cb, Interest: interest}
	return tok, nil
}

// Update implements reactor.Reactor.
func (m *MockReactor) Update(tok reactor.Token, interest reactor.Events) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	reg, ok := m.regs[tok.FD()]
	if !ok || reg.Token != tok {
		return reactor.ErrUnknownToken
	}
	reg.Interest = interest
	m.Updates = append(m.Updates, interest)
	return nil
}

// Deregister implements reactor.Reactor.
func (m *MockReactor) Deregister(tok reactor.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeregisterCalls++
	if m.DeregisterErr != nil {
		return m.DeregisterErr
	}
	reg, ok := m.regs[tok.FD()]
	if !ok || reg.Token != tok {
		return reactor.ErrUnknownToken
	}
	delete(m.regs, tok.FD())
	return nil
}

// Registration returns a copy of the registration of fd.
func (m *MockReactor) Registration(fd int) (MockRegistration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.regs[fd]
	if !ok {
		return MockRegistration{}, false
	}
	return *reg, true
}

// Len returns the number of registered descriptors.
func (m *MockReactor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regs)
}

// Fire delivers ev to the callback registered for fd.
func (m *MockReactor) Fire(fd int, ev reactor.Events) error {
	m.mu.Lock()
	reg, ok := m.regs[fd]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("fd %d not registered", fd)
	}
	reg.Callback(fd, ev)
	return nil
}
