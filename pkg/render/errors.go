package render

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError represents a render that did not finish in time
type TimeoutError struct {
	Template string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("render of %s timed out after %s", e.Template, e.Timeout)
}

// EngineError represents a failure reported by the screenshot engine
type EngineError struct {
	Engine     string
	StatusCode int
	Message    string
	Err        error
}

func (e *EngineError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s engine error (status %d): %s", e.Engine, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s engine error: %s: %v", e.Engine, e.Message, e.Err)
	}
	return fmt.Sprintf("%s engine error: %s", e.Engine, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// TemplateError represents a template that could not be loaded or executed
type TemplateError struct {
	File string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.File, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// ConfigurationError represents a configuration validation error
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// IsTimeout reports whether err is, or wraps, a render timeout
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
