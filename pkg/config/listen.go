package config

import (
	"fmt"
	"net"
)

// Listen contains configuration specific to the listen command.
type Listen struct {
	Echo        bool
	MetricsAddr string
	LogFile     string
}

// Validate checks the Listen configuration for errors.
func (cfg *Listen) Validate() []error {
	var errors []error

	if cfg.MetricsAddr != "" {
		if _, port, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			errors = append(errors, fmt.Errorf("'--metrics': %s", err))
		} else if port == "" {
			errors = append(errors, fmt.Errorf("'--metrics': missing port"))
		}
	}

	return errors
}
