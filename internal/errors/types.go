package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// AssetError is a structured error type with context.
type AssetError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Template    string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *AssetError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Template != "" {
		parts = append(parts, "template:"+e.Template)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AssetError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *AssetError) Is(target error) bool {
	var t *AssetError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AssetError) WithContext(key string, value interface{}) *AssetError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *AssetError) WithLocation(filePath string, line, column int) *AssetError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithTemplate adds the template the error was raised for.
func (e *AssetError) WithTemplate(template string) *AssetError {
	e.Template = template

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *AssetError {
	return &AssetError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error. Configuration errors are
// setup defects and are never retried.
func NewConfigError(code, message string) *AssetError {
	return &AssetError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}

	return false
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	return HasErrorType(err, ErrorTypeBuild)
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	return HasErrorType(err, ErrorTypeConfig)
}

// HasErrorType reports whether any AssetError in the chain has the given type.
func HasErrorType(err error, errType ErrorType) bool {
	for err != nil {
		var ae *AssetError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Type == errType {
			return true
		}
		err = ae.Cause
	}

	return false
}

// HasErrorCode reports whether any AssetError in the chain has the given code.
func HasErrorCode(err error, code string) bool {
	for err != nil {
		var ae *AssetError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Cause
	}

	return false
}

// Common error codes.
const (
	ErrCodeNotInitialized   = "ERR_NOT_INITIALIZED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeUnknownProvider  = "ERR_UNKNOWN_PROVIDER"
	ErrCodeTemplateNotFound = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeInheritanceCycle = "ERR_INHERITANCE_CYCLE"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeRenderFailed     = "ERR_RENDER_FAILED"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeCommandInvalid   = "ERR_COMMAND_INVALID"
	ErrCodeMultipleErrors   = "ERR_MULTIPLE_ERRORS"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Helper functions for common errors

// ErrNotInitialized is returned when the provider registry is used before the
// engine set it up.
func ErrNotInitialized() *AssetError {
	return NewConfigError(
		ErrCodeNotInitialized,
		"the template engine did not initialize correctly; check that the engine is created before providers are used",
	)
}

// ErrTemplateNotFound creates a template lookup error.
func ErrTemplateNotFound(app, name string) *AssetError {
	return NewValidationError(
		ErrCodeTemplateNotFound,
		fmt.Sprintf("template %s/%s not found", app, name),
	).WithContext("app", app)
}

// ErrBuildFailed creates a build failure error for the given source file.
func ErrBuildFailed(source string, cause error) *AssetError {
	return NewBuildError(
		ErrCodeBuildFailed,
		"compile failed",
		cause,
	).WithLocation(source, 0, 0)
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *AssetError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}
