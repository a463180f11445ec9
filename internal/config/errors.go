package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an invalid or missing setting: conflicting
// flags, a required environment value that is not set, a bad config field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// MissingEnv builds the error for a required environment variable that is
// set neither in the process environment nor in any of files.
func MissingEnv(key string, files ...string) *ConfigurationError {
	reason := "environment variable not found"
	if len(files) > 0 {
		reason = fmt.Sprintf("environment variable not found (checked environment and %v)", files)
	}
	return &ConfigurationError{Field: key, Reason: reason}
}
