//go:build linux

package unixdgram

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snmpcarrier/pkg/carrier"
	"snmpcarrier/pkg/reactor"
	"snmpcarrier/pkg/transport"
)

func TestTransport_RoundTrip(t *testing.T) {
	t.Parallel()

	l, err := reactor.NewLoop(reactor.LoopConfig{})
	if err != nil {
		t.Fatalf("NewLoop(): %v", err)
	}
	serverPath := filepath.Join(t.TempDir(), "agent.sock")

	server, err := New(transport.WithReactor(l))
	if err != nil {
		t.Fatalf("New() server: %v", err)
	}
	if err := server.OpenServerMode(&net.UnixAddr{Name: serverPath, Net: "unixgram"}); err != nil {
		t.Fatalf("OpenServerMode(): %v", err)
	}
	_ = server.RegisterRecvFunc(func(tr carrier.Transport, src net.Addr, msg []byte) {
		_ = tr.SendMessage(msg, src)
	})

	client, err := New(transport.WithReactor(l))
	if err != nil {
		t.Fatalf("New() client: %v", err)
	}
	if err := client.OpenClientMode(nil); err != nil {
		t.Fatalf("OpenClientMode(): %v", err)
	}
	clientPath := client.Path()

	got := make(chan string, 1)
	_ = client.RegisterRecvFunc(func(_ carrier.Transport, _ net.Addr, msg []byte) {
		got <- string(msg)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	defer func() {
		cancel()
		<-done
		_ = l.Close()
	}()

	dst := &net.UnixAddr{Name: serverPath, Net: "unixgram"}
	_ = l.Post(func() { _ = client.SendMessage([]byte("ping"), dst) })

	select {
	case msg := <-got:
		if msg != "ping" {
			t.Errorf("client received %q; want %q", msg, "ping")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply received")
	}

	closed := make(chan struct{})
	_ = l.Post(func() {
		_ = client.CloseTransport()
		_ = server.CloseTransport()
		close(closed)
	})
	<-closed

	for _, p := range []string{serverPath, clientPath} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still present after close: %v", p, err)
		}
	}
}
