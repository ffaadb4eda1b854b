package carrier

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned by extension points a transport does not override.
	ErrNotImplemented = errors.New("method not implemented")
	// ErrCallbackRegistered is returned when a second receive callback is registered.
	ErrCallbackRegistered = errors.New("callback already registered")
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport closed")
)

// ConfigurationError reports that a transport could not be set up.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
