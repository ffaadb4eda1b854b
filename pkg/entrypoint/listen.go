package entrypoint

import (
	"context"
	"fmt"
	"net"

	"snmpcarrier/pkg/carrier"
	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/format"
	"snmpcarrier/pkg/log"
	"snmpcarrier/pkg/reactor"
	"snmpcarrier/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus"
)

// uses interfaces/factories from internal.go (DI for testing)

// Listen opens the configured transport in server mode and prints every
// datagram it receives until ctx is cancelled.
func Listen(ctx context.Context, cfg *config.Shared, lCfg *config.Listen) error {
	return listen(ctx, cfg, lCfg, realLoopFactory(), realTransportFactory())
}

func listen(
	ctx context.Context,
	cfg *config.Shared,
	lCfg *config.Listen,
	newLoop loopFactory,
	newTransport transportFactory,
) error {
	var recorder *log.Recorder
	if lCfg.LogFile != "" {
		r, err := log.NewRecorder(lCfg.LogFile)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer r.Close()
		recorder = r
	}

	registry := telemetry.NewRegistry()
	datagrams := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snmpcarrier",
		Subsystem: "listen",
		Name:      "datagrams_total",
		Help:      "Datagrams received and echoed.",
	}, []string{"direction"})
	registry.MustRegister(datagrams)

	loop, err := newLoop(reactor.LoopConfig{
		Logger:  cfg.Logger,
		Metrics: reactor.NewMetrics(registry),
	})
	if err != nil {
		return fmt.Errorf("creating event loop: %w", err)
	}
	defer loop.Close()

	tr, err := newTransport(cfg, loop)
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}
	// the loop has stopped when this runs
	defer tr.CloseTransport()

	if err := tr.OpenServerMode(cfg.Addr()); err != nil {
		return fmt.Errorf("opening server mode: %w", err)
	}

	out := config.GetStdoutFunc(cfg.Deps)()
	handle := func(t carrier.Transport, src net.Addr, msg []byte) {
		datagrams.WithLabelValues("in").Inc()
		printDatagram(out, log.DirIn, src, msg)
		if err := recorder.Record(log.DirIn, src, msg); err != nil {
			cfg.Logger.ErrorMsg("%s", err)
		}

		if !lCfg.Echo {
			return
		}
		if format.Peer(src) == "-" {
			cfg.Logger.VerboseMsg("Not echoing to unbound peer")
			return
		}
		if err := t.SendMessage(msg, src); err != nil {
			cfg.Logger.ErrorMsg("Echo to %s: %s", src, err)
			return
		}
		datagrams.WithLabelValues("out").Inc()
		if err := recorder.Record(log.DirOut, src, msg); err != nil {
			cfg.Logger.ErrorMsg("%s", err)
		}
	}
	if err := tr.RegisterRecvFunc(handle); err != nil {
		return fmt.Errorf("registering receiver: %w", err)
	}

	if lCfg.MetricsAddr != "" {
		h := telemetry.NewHandler(registry, telemetry.LoopCheck(loop.Running))
		srv, err := telemetry.Listen(lCfg.MetricsAddr, h, cfg.Logger)
		if err != nil {
			return fmt.Errorf("starting telemetry: %w", err)
		}

		srvCtx, stop := context.WithCancel(ctx)
		srvDone := make(chan error, 1)
		go func() { srvDone <- srv.Serve(srvCtx) }()
		defer func() {
			stop()
			if err := <-srvDone; err != nil {
				cfg.Logger.ErrorMsg("%s", err)
			}
		}()

		cfg.Logger.InfoMsg("Serving metrics on http://%s/metrics", srv.Addr())
	}

	cfg.Logger.VerboseMsg("Session %s", cfg.ID)
	cfg.Logger.InfoMsg("Listening on %s://%s", cfg.Protocol, format.Peer(tr.LocalAddr()))

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("running event loop: %w", err)
	}
	return nil
}
