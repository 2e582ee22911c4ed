package models

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a registry or schema problem detected at startup.
// It is the only error allowed to escape orchestrator construction.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ErrRetrievalUnavailable marks an embedding or vector-store failure for one call.
// The orchestrator recovers from it locally.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")
