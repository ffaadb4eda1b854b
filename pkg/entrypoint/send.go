package entrypoint

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"snmpcarrier/pkg/carrier"
	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/log"
	"snmpcarrier/pkg/pipeio"
	"snmpcarrier/pkg/reactor"

	"github.com/muesli/cancelreader"
)

// ErrNoReply is returned by Send if a single message got no reply in time.
var ErrNoReply = errors.New("no reply received")

const prompt = "> "

// Send opens the configured transport in client mode and sends either the
// configured message or every line read from stdin to it. Replies are
// printed to stdout.
func Send(ctx context.Context, cfg *config.Shared, sCfg *config.Send) error {
	return send(ctx, cfg, sCfg, realLoopFactory(), realTransportFactory())
}

func send(
	parent context.Context,
	cfg *config.Shared,
	sCfg *config.Send,
	newLoop loopFactory,
	newTransport transportFactory,
) error {
	loop, err := newLoop(reactor.LoopConfig{Logger: cfg.Logger})
	if err != nil {
		return fmt.Errorf("creating event loop: %w", err)
	}
	defer loop.Close()

	tr, err := newTransport(cfg, loop)
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}

	if err := tr.OpenClientMode(nil); err != nil {
		_ = tr.CloseTransport()
		return fmt.Errorf("opening client mode: %w", err)
	}

	stdio := pipeio.NewStdio(config.GetStdinFunc(cfg.Deps)(), config.GetStdoutFunc(cfg.Deps)())
	defer stdio.Close()

	replies := make(chan struct{}, 1)
	if err := tr.RegisterRecvFunc(func(_ carrier.Transport, src net.Addr, msg []byte) {
		printDatagram(stdio, log.DirIn, src, msg)
		select {
		case replies <- struct{}{}:
		default:
		}
	}); err != nil {
		_ = tr.CloseTransport()
		return fmt.Errorf("registering receiver: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	loopDone := make(chan struct{})
	var loopErr error
	go func() {
		loopErr = loop.Run(ctx)
		close(loopDone)
	}()
	defer func() {
		cancel()
		<-loopDone
		_ = tr.CloseTransport()
	}()

	dst := cfg.Addr()
	sendErrs := make(chan error, 1)
	submit := func(msg []byte) error {
		return loop.Post(func() {
			if err := tr.SendMessage(msg, dst); err != nil {
				select {
				case sendErrs <- err:
				default:
				}
			}
		})
	}

	cfg.Logger.VerboseMsg("Session %s", cfg.ID)
	cfg.Logger.VerboseMsg("Sending to %s://%s from %s", cfg.Protocol, dst, tr.LocalAddr())

	if sCfg.Message != "" {
		return sendOne(ctx, cfg, []byte(sCfg.Message), submit, replies, sendErrs, loopDone, &loopErr)
	}
	return sendLines(ctx, cfg, stdio, submit, sendErrs, loopDone, &loopErr)
}

func sendOne(
	ctx context.Context,
	cfg *config.Shared,
	msg []byte,
	submit func([]byte) error,
	replies <-chan struct{},
	sendErrs <-chan error,
	loopDone <-chan struct{},
	loopErr *error,
) error {
	if err := submit(msg); err != nil {
		return fmt.Errorf("sending: %w", err)
	}

	timer := time.NewTimer(cfg.Timeout)
	defer timer.Stop()

	select {
	case <-replies:
		return nil
	case err := <-sendErrs:
		return fmt.Errorf("sending: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w within %s", ErrNoReply, cfg.Timeout)
	case <-loopDone:
		return loopStopped(ctx, *loopErr)
	case <-ctx.Done():
		return nil
	}
}

func sendLines(
	ctx context.Context,
	cfg *config.Shared,
	stdio *pipeio.Stdio,
	submit func([]byte) error,
	sendErrs <-chan error,
	loopDone <-chan struct{},
	loopErr *error,
) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdio)
		scanner.Buffer(make([]byte, 4096), config.MaxMessageSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	interactive := stdio.Interactive()
	for {
		if interactive {
			_, _ = stdio.Write([]byte(prompt))
		}

		select {
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			if err := submit(line); err != nil {
				return fmt.Errorf("sending: %w", err)
			}
		case err := <-sendErrs:
			cfg.Logger.ErrorMsg("Sending: %s", err)
		case err := <-readErr:
			if err != nil && !errors.Is(err, cancelreader.ErrCanceled) {
				return fmt.Errorf("reading stdin: %w", err)
			}
			// give late replies a chance
			return drain(ctx, cfg, sendErrs, loopDone, loopErr)
		case <-loopDone:
			return loopStopped(ctx, *loopErr)
		case <-ctx.Done():
			return nil
		}
	}
}

func drain(ctx context.Context, cfg *config.Shared, sendErrs <-chan error, loopDone <-chan struct{}, loopErr *error) error {
	timer := time.NewTimer(cfg.Timeout)
	defer timer.Stop()

	for {
		select {
		case err := <-sendErrs:
			cfg.Logger.ErrorMsg("Sending: %s", err)
		case <-timer.C:
			return nil
		case <-loopDone:
			return loopStopped(ctx, *loopErr)
		case <-ctx.Done():
			return nil
		}
	}
}

func loopStopped(ctx context.Context, err error) error {
	if err != nil {
		return fmt.Errorf("running event loop: %w", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("event loop stopped")
}
