// Package version implements the version command.
package version

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set at build time with -ldflags "-X snmpcarrier/cmd/version.Version=...".
var Version = "unknown"

// GetCommand returns the CLI command printing the program version.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Program version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var w io.Writer = os.Stdout
			if cmd.Writer != nil {
				w = cmd.Writer
			}
			_, err := fmt.Fprintf(w, "snmpcarrier %s\n", Version)
			return err
		},
		Flags: []cli.Flag{},
	}
}
