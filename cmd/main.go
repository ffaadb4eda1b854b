package main

import (
	"context"
	"os"

	"snmpcarrier/cmd/listen"
	"snmpcarrier/cmd/send"
	"snmpcarrier/cmd/shared"
	"snmpcarrier/cmd/version"
	"snmpcarrier/pkg/log"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared.SetupSignalHandling(cancel)

	cmd := &cli.Command{
		Name:  "snmpcarrier",
		Usage: "send and receive datagrams through reactor-driven sockets",
		Commands: []*cli.Command{
			listen.GetCommand(),
			send.GetCommand(),
			version.GetCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.ErrorMsg("%s\n", err)
		os.Exit(1)
	}
}
