// Package listen implements the listen command, which opens a transport in
// server mode and prints the datagrams it receives.
package listen

import (
	"context"

	"snmpcarrier/cmd/shared"
	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/entrypoint"

	"github.com/urfave/cli/v3"
)

// GetCommand returns the CLI command for listen mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "listen",
		Usage:       "Receive datagrams on a transport",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := shared.NewSharedConfig(cmd, "listen")
			if err != nil {
				return err
			}

			lCfg := &config.Listen{
				Echo:        cmd.Bool(shared.EchoFlag),
				MetricsAddr: cmd.String(shared.MetricsFlag),
				LogFile:     cmd.String(shared.LogFileFlag),
			}

			if err := shared.ReportValidation(config.Validate(cfg, lCfg)); err != nil {
				return err
			}

			return entrypoint.Listen(ctx, cfg, lCfg)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetListenFlags()...)

	return flags
}
