//go:build linux

package reactor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"snmpcarrier/pkg/log"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sys/unix"
)

const defaultMaxEvents = 128

var errAlreadyRunning = errors.New("loop already running")

// LoopConfig configures a Loop. The zero value is usable.
type LoopConfig struct {
	// MaxEvents bounds the notifications collected per epoll_wait call.
	MaxEvents int
	Logger    *log.Logger
	Metrics   *Metrics
}

type registration struct {
	tok      Token
	cb       Callback
	interest atomic.Uint32
}

// Loop is an epoll based Reactor. Callbacks and posted functions run on the
// goroutine that calls Run, one at a time.
type Loop struct {
	epfd   int
	wakefd int

	regs cmap.ConcurrentMap[int, *registration]
	gen  atomic.Uint64

	logger  *log.Logger
	metrics *Metrics
	events  []unix.EpollEvent

	postMu sync.Mutex
	posted []func()

	runMu   sync.Mutex
	running atomic.Bool
	closed  atomic.Bool
}

// NewLoop creates an epoll instance and its wakeup eventfd.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl(ADD, eventfd): %w", err)
	}

	return &Loop{
		epfd:   epfd,
		wakefd: wakefd,
		regs: cmap.NewWithCustomShardingFunction[int, *registration](func(fd int) uint32 {
			return uint32(fd)
		}),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		events:  make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Register implements Reactor.
func (l *Loop) Register(fd int, cb Callback, interest Events) (Token, error) {
	if l.closed.Load() {
		return Token{}, ErrClosed
	}
	if cb == nil {
		return Token{}, fmt.Errorf("register fd %d: nil callback", fd)
	}

	reg := &registration{tok: NewToken(fd, l.gen.Add(1)), cb: cb}
	reg.interest.Store(uint32(interest))
	if !l.regs.SetIfAbsent(fd, reg) {
		return Token{}, fmt.Errorf("register fd %d: %w", fd, ErrAlreadyRegistered)
	}

	ev := epollEvent(reg.tok, interest)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		l.regs.Remove(fd)
		return Token{}, fmt.Errorf("epoll_ctl(ADD, %d): %w", fd, err)
	}

	l.metrics.registered(1)
	l.logger.VerboseMsg("reactor: registered %s for %s", reg.tok, interest)
	return reg.tok, nil
}

// Update implements Reactor.
func (l *Loop) Update(tok Token, interest Events) error {
	if l.closed.Load() {
		return ErrClosed
	}

	reg, ok := l.regs.Get(tok.FD())
	if !ok || reg.tok != tok {
		return fmt.Errorf("update %s: %w", tok, ErrUnknownToken)
	}

	ev := epollEvent(tok, interest)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, tok.FD(), &ev); err != nil {
		return fmt.Errorf("epoll_ctl(MOD, %d): %w", tok.FD(), err)
	}
	reg.interest.Store(uint32(interest))

	l.logger.VerboseMsg("reactor: updated %s to %s", tok, interest)
	return nil
}

// Deregister implements Reactor. The descriptor must still be open.
func (l *Loop) Deregister(tok Token) error {
	if l.closed.Load() {
		return ErrClosed
	}

	removed := l.regs.RemoveCb(tok.FD(), func(_ int, reg *registration, exists bool) bool {
		return exists && reg.tok == tok
	})
	if !removed {
		return fmt.Errorf("deregister %s: %w", tok, ErrUnknownToken)
	}
	l.metrics.registered(-1)

	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, tok.FD(), nil); err != nil {
		return fmt.Errorf("epoll_ctl(DEL, %d): %w", tok.FD(), err)
	}

	l.logger.VerboseMsg("reactor: deregistered %s", tok)
	return nil
}

// Interest returns the interest set currently registered for fd.
func (l *Loop) Interest(fd int) (Events, bool) {
	reg, ok := l.regs.Get(fd)
	if !ok {
		return 0, false
	}
	return Events(reg.interest.Load()), true
}

// Len returns the number of registered descriptors.
func (l *Loop) Len() int {
	return l.regs.Count()
}

// Post schedules fn to run on the loop goroutine after the current batch
// of notifications. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}

	l.postMu.Lock()
	l.posted = append(l.posted, fn)
	l.postMu.Unlock()

	l.metrics.posted()
	l.wake()
	return nil
}

// Run dispatches notifications until ctx is cancelled or the loop is
// closed. Functions still pending when Run returns are discarded.
func (l *Loop) Run(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if !l.runMu.TryLock() {
		return errAlreadyRunning
	}
	defer l.runMu.Unlock()

	l.running.Store(true)
	defer l.running.Store(false)

	stop := context.AfterFunc(ctx, l.wake)
	defer stop()

	for {
		if l.closed.Load() || ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(l.epfd, l.events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(l.events[i].Fd)
			if fd == l.wakefd {
				l.drainWake()
				continue
			}

			// a callback earlier in this batch may have deregistered fd,
			// or closed it and registered a new socket under the same number
			reg, ok := l.regs.Get(fd)
			if !ok || uint32(l.events[i].Pad) != uint32(reg.tok.Generation()) {
				continue
			}
			ev := fromEpoll(l.events[i].Events)
			l.metrics.dispatched(ev)
			l.dispatch(reg, fd, ev)
		}

		l.runPosted()
	}
}

// Running reports whether Run is dispatching notifications.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Close stops a running loop and releases the epoll instance. It must not
// be called from a callback; cancel the Run context there instead.
func (l *Loop) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.wake()

	l.runMu.Lock()
	defer l.runMu.Unlock()

	return errors.Join(unix.Close(l.epfd), unix.Close(l.wakefd))
}

func (l *Loop) dispatch(reg *registration, fd int, ev Events) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.panicked()
			l.logger.ErrorMsg("reactor: callback for fd %d panicked: %v\n%s", fd, r, debug.Stack())
		}
	}()
	reg.cb(fd, ev)
}

func (l *Loop) runPosted() {
	l.postMu.Lock()
	fns := l.posted
	l.posted = nil
	l.postMu.Unlock()

	for _, fn := range fns {
		l.runOne(fn)
	}
}

func (l *Loop) runOne(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.panicked()
			l.logger.ErrorMsg("reactor: posted function panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

func (l *Loop) wake() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	// EAGAIN means the counter is saturated, a wakeup is pending anyway
	_, _ = unix.Write(l.wakefd, buf[:])
}

func (l *Loop) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(l.wakefd, buf[:])
}

// epollEvent carries the low bits of the token generation in the event
// data so that notifications queued for a previous registration of the
// same descriptor can be recognised.
func epollEvent(tok Token, interest Events) unix.EpollEvent {
	return unix.EpollEvent{
		Events: toEpoll(interest),
		Fd:     int32(tok.FD()),
		Pad:    int32(uint32(tok.Generation())),
	}
}

func toEpoll(interest Events) uint32 {
	var ev uint32
	if interest.Readable() {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest.Writable() {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpoll(ev uint32) Events {
	var out Events
	if ev&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		out |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		out |= Write
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		out |= Error | Read
	}
	return out
}
