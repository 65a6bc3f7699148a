package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error category. Callers match on codes rather
// than message text.
type ErrorCode string

const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// Configuration errors, fatal at resolution time
	ErrConfigLoad     ErrorCode = "CONFIG_LOAD"
	ErrConfigParse    ErrorCode = "CONFIG_PARSE"
	ErrConfigInvalid  ErrorCode = "CONFIG_INVALID"
	ErrRuleInvalid    ErrorCode = "RULE_INVALID"
	ErrPatternInvalid ErrorCode = "PATTERN_INVALID"

	// Pipeline and step errors
	ErrPipelineNotFound ErrorCode = "PIPELINE_NOT_FOUND"
	ErrStepNotFound     ErrorCode = "STEP_NOT_FOUND"
	ErrStepExecute      ErrorCode = "STEP_EXECUTE"

	// Data request / table errors
	ErrTableNotFound    ErrorCode = "TABLE_NOT_FOUND"
	ErrVariableNotFound ErrorCode = "VARIABLE_NOT_FOUND"

	// Unit conversion errors
	ErrUnitInvalid      ErrorCode = "UNIT_INVALID"
	ErrUnitIncompatible ErrorCode = "UNIT_INCOMPATIBLE"

	// Execution errors, isolated per task
	ErrCancelled  ErrorCode = "CANCELLED"
	ErrFileAccess ErrorCode = "FILE_ACCESS"
	ErrDataLoad   ErrorCode = "DATA_LOAD"
	ErrDataSave   ErrorCode = "DATA_SAVE"
	ErrAuxLoad    ErrorCode = "AUX_LOAD"
)

// CmorError carries a code, a human-readable message, and a details map
// used for fault localization (rule, step, pattern, path).
type CmorError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

func (e *CmorError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CmorError) Unwrap() error {
	return e.Wrapped
}

// Is matches two CmorErrors by code, so errors.Is works with sentinel
// instances.
func (e *CmorError) Is(target error) bool {
	var targetErr *CmorError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New builds a CmorError with the given code and message.
func New(code ErrorCode, message string) *CmorError {
	return &CmorError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf is New with Sprintf formatting.
func Newf(code ErrorCode, format string, args ...interface{}) *CmorError {
	return &CmorError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap attaches a code and message to an existing error. Returns nil for
// a nil cause.
func Wrap(err error, code ErrorCode, message string) *CmorError {
	if err == nil {
		return nil
	}
	return &CmorError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf is Wrap with Sprintf formatting.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *CmorError {
	if err == nil {
		return nil
	}
	return &CmorError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail records one localization detail and returns the error for
// chaining.
func (e *CmorError) WithDetail(key string, value interface{}) *CmorError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails records several localization details at once.
func (e *CmorError) WithDetails(details map[string]interface{}) *CmorError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode reports whether err (or anything it wraps) carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	var cmorErr *CmorError
	if errors.As(err, &cmorErr) {
		return cmorErr.Code == code
	}
	return false
}

// GetErrorCode extracts the code from err, or ErrUnknown for plain errors.
func GetErrorCode(err error) ErrorCode {
	var cmorErr *CmorError
	if errors.As(err, &cmorErr) {
		return cmorErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails collects the details maps of every CmorError in the
// wrapped chain, so re-wrapping an error never hides the localization
// details recorded deeper down. On key collisions the outermost entry
// wins. Nil for plain errors.
func GetErrorDetails(err error) map[string]interface{} {
	var details map[string]interface{}
	for {
		var cmorErr *CmorError
		if !errors.As(err, &cmorErr) {
			return details
		}
		if details == nil {
			details = make(map[string]interface{})
		}
		for k, v := range cmorErr.Details {
			if _, ok := details[k]; !ok {
				details[k] = v
			}
		}
		err = cmorErr.Unwrap()
	}
}
