package config

import "fmt"

// ConfigurationError reports a malformed pipeline definition: a missing or
// duplicate stage id, a dangling depends_on reference, an invalid field, or
// a dependency cycle. It is always fatal and always raised before any stage
// executes.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError builds a ConfigurationError from a format string.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
