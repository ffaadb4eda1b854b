// Package send implements the send command, which opens a transport in
// client mode and sends messages to a peer.
package send

import (
	"context"

	"snmpcarrier/cmd/shared"
	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/entrypoint"

	"github.com/urfave/cli/v3"
)

// GetCommand returns the CLI command for send mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "send",
		Usage:       "Send datagrams to a transport and print the replies",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := shared.NewSharedConfig(cmd, "send")
			if err != nil {
				return err
			}

			sCfg := &config.Send{
				Message: cmd.String(shared.MessageFlag),
			}

			if err := shared.ReportValidation(config.Validate(cfg, sCfg)); err != nil {
				return err
			}

			return entrypoint.Send(ctx, cfg, sCfg)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetSendFlags()...)

	return flags
}
