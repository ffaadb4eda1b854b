package config

import "fmt"

// MaxMessageSize is the largest payload a datagram transport can carry.
const MaxMessageSize = 65507

// Send contains configuration specific to the send command.
type Send struct {
	// Message is sent once if set; otherwise every stdin line is sent.
	Message string
}

// Validate checks the Send configuration for errors.
func (cfg *Send) Validate() []error {
	var errors []error

	if len(cfg.Message) > MaxMessageSize {
		errors = append(errors, fmt.Errorf("'--message' exceeds %d bytes", MaxMessageSize))
	}

	return errors
}
