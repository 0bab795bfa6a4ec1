// Package errors provides the structured error types used across assetry,
// a collector for aggregating failures over a provider run or a build, and a
// parser that turns stylesheet compiler output into located build errors.
package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CollectedError is an error recorded by an ErrorCollector along with where
// it happened.
type CollectedError struct {
	Template  string
	Provider  string
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (ce *CollectedError) Error() string {
	if ce.Provider == "" {
		return fmt.Sprintf("%s: %v", ce.Template, ce.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ce.Template, ce.Provider, ce.Err)
}

// Unwrap returns the recorded error
func (ce *CollectedError) Unwrap() error {
	return ce.Err
}

// ErrorCollector collects errors from multiple providers or templates. It can
// safely be used by multiple goroutines.
type ErrorCollector struct {
	errors []CollectedError
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]CollectedError, 0),
	}
}

// Add records err against the given template and provider. Nil errors are
// ignored.
func (ec *ErrorCollector) Add(template, provider string, err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, CollectedError{
		Template:  template,
		Provider:  provider,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// GetErrors returns a copy of all collected errors
func (ec *ErrorCollector) GetErrors() []CollectedError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]CollectedError, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// GetErrorsByTemplate returns errors for a specific template
func (ec *ErrorCollector) GetErrorsByTemplate(template string) []CollectedError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var templateErrors []CollectedError
	for _, err := range ec.errors {
		if err.Template == template {
			templateErrors = append(templateErrors, err)
		}
	}
	return templateErrors
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors) > 0
}

// Count returns the number of collected errors
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors)
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = ec.errors[:0]
}

// Err combines the collected errors into one. It returns nil when nothing was
// collected and the single error unchanged when only one was.
func (ec *ErrorCollector) Err() error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	switch len(ec.errors) {
	case 0:
		return nil
	case 1:
		return &ec.errors[0]
	}

	errs := make([]error, 0, len(ec.errors))
	messages := make([]string, 0, len(ec.errors))
	for i := range ec.errors {
		errs = append(errs, &ec.errors[i])
		messages = append(messages, ec.errors[i].Error())
	}

	return &AssetError{
		Type:    ErrorTypeBuild,
		Code:    ErrCodeMultipleErrors,
		Message: fmt.Sprintf("%d providers failed", len(errs)),
		Cause:   errors.Join(errs...),
		Context: map[string]interface{}{
			"error_count": len(errs),
			"errors":      messages,
		},
		Recoverable: true,
	}
}
