//go:build !linux

package reactor

import (
	"context"

	"snmpcarrier/pkg/log"
)

// LoopConfig configures a Loop.
type LoopConfig struct {
	MaxEvents int
	Logger    *log.Logger
	Metrics   *Metrics
}

// Loop is only available on linux.
type Loop struct{}

// NewLoop always fails with ErrUnsupported on this platform.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	return nil, ErrUnsupported
}

func (l *Loop) Register(fd int, cb Callback, interest Events) (Token, error) {
	return Token{}, ErrUnsupported
}

func (l *Loop) Update(tok Token, interest Events) error { return ErrUnsupported }

func (l *Loop) Deregister(tok Token) error { return ErrUnsupported }

func (l *Loop) Interest(fd int) (Events, bool) { return 0, false }

func (l *Loop) Len() int { return 0 }

func (l *Loop) Post(fn func()) error { return ErrUnsupported }

func (l *Loop) Run(ctx context.Context) error { return ErrUnsupported }

func (l *Loop) Running() bool { return false }

func (l *Loop) Close() error { return nil }
