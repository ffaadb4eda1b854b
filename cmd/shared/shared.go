// Package shared provides common CLI flag definitions and utility functions
// used across snmpcarrier's command-line interface.
package shared

import (
	"fmt"
	"os"
	"strings"
	"time"

	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/log"
	"snmpcarrier/pkg/socket"

	"github.com/urfave/cli/v3"
)

const categoryCommon = "common"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// TimeoutFlag is the name of the flag to specify how long to wait for
// replies, in milliseconds.
const TimeoutFlag = "timeout"

// BufferSizeFlag is the name of the flag to specify the socket buffer size.
const BufferSizeFlag = "buffer-size"

// GetBaseDescription returns the base description text for transport
// specifications used in CLI commands.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify transport like this: udp://127.0.0.1:161, udp6://[::1]:161 or unix:///run/agent.sock",
		"You can omit the host when listening to bind to all interfaces.",
	}, "\n")
}

// GetArgsUsage returns the arguments usage string for CLI commands.
func GetArgsUsage() string {
	return strings.Join([]string{
		"transport",
	}, " ")
}

// GetCommonFlags returns the CLI flags used by all transport commands.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.IntFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Time to wait for replies in milliseconds",
			Category: categoryCommon,
			Value:    1000,
			Required: false,
		},
		&cli.IntFlag{
			Name:     BufferSizeFlag,
			Aliases:  []string{},
			Usage:    "Minimum socket send and receive buffer size in bytes, 0 keeps the system defaults",
			Category: categoryCommon,
			Value:    socket.DefaultBufferSize,
			Required: false,
		},
	}
}

const categoryListen = "listen"

// EchoFlag is the name of the flag to send received datagrams back.
const EchoFlag = "echo"

// MetricsFlag is the name of the flag to specify the telemetry address.
const MetricsFlag = "metrics"

// LogFileFlag is the name of the flag to specify a datagram log file.
const LogFileFlag = "log"

// GetListenFlags returns the CLI flags specific to listen mode.
func GetListenFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     EchoFlag,
			Aliases:  []string{"e"},
			Usage:    "Send every datagram back to its sender",
			Category: categoryListen,
			Value:    false,
			Required: false,
		},
		&cli.StringFlag{
			Name:     MetricsFlag,
			Aliases:  []string{},
			Usage:    "Serve /metrics, /live and /ready on this address, format: <host>:<port>",
			Category: categoryListen,
			Value:    "",
			Required: false,
		},
		&cli.StringFlag{
			Name:     LogFileFlag,
			Aliases:  []string{"l"},
			Usage:    "Append a hex dump of every datagram to this file",
			Category: categoryListen,
			Value:    "",
			Required: false,
		},
	}
}

const categorySend = "send"

// MessageFlag is the name of the flag to specify a single message to send.
const MessageFlag = "message"

// GetSendFlags returns the CLI flags specific to send mode.
func GetSendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     MessageFlag,
			Aliases:  []string{"m"},
			Usage:    "Send this message, wait for one reply and exit; without it every line of stdin is sent",
			Category: categorySend,
			Value:    "",
			Required: false,
		},
	}
}

// NewSharedConfig builds the common configuration from the transport
// argument and the common flags of cmd.
func NewSharedConfig(cmd *cli.Command, role string) (*config.Shared, error) {
	args := cmd.Args()
	if args.Len() != 1 {
		return nil, fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
	}

	t, err := ParseTransport(args.Get(0))
	if err != nil {
		return nil, fmt.Errorf("parsing transport: %s", err)
	}

	verbose := cmd.Bool(VerboseFlag)
	return &config.Shared{
		ID:         fmt.Sprintf("%s[%s]", role, config.GenerateId()),
		Protocol:   t.Protocol,
		Host:       t.Host,
		Port:       t.Port,
		Path:       t.Path,
		BufferSize: int(cmd.Int(BufferSizeFlag)),
		Verbose:    verbose,
		Timeout:    time.Duration(cmd.Int(TimeoutFlag)) * time.Millisecond,
		Logger:     log.NewLogger(os.Stderr, verbose),
	}, nil
}

// ReportValidation prints errs and returns an error if there are any.
func ReportValidation(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	log.ErrorMsg("Argument validation errors:\n")
	for _, err := range errs {
		log.ErrorMsg(" - %s\n", err)
	}
	return fmt.Errorf("exiting")
}
