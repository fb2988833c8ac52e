package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeEvaluation ErrorType = "evaluation"
	ErrorTypeHook       ErrorType = "hook"
	ErrorTypeFetch      ErrorType = "fetch"
	ErrorTypeMount      ErrorType = "mount"
	ErrorTypeBinding    ErrorType = "binding"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
)

// MelodiError is a structured error type with context.
type MelodiError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *MelodiError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *MelodiError) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same type and code.
func (e *MelodiError) Is(target error) bool {
	var t *MelodiError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *MelodiError) WithContext(key string, value interface{}) *MelodiError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *MelodiError) WithComponent(component string) *MelodiError {
	e.Component = component

	return e
}

// WithFile adds the file the error was found in.
func (e *MelodiError) WithFile(path string) *MelodiError {
	e.FilePath = path

	return e
}

// Error creation functions

// NewEvaluationError creates an expression evaluation error.
func NewEvaluationError(expression string, cause error) *MelodiError {
	return &MelodiError{
		Type:        ErrorTypeEvaluation,
		Code:        ErrCodeExpression,
		Message:     "cannot evaluate " + expression,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewHookError creates a lifecycle hook error.
func NewHookError(hook string, cause error) *MelodiError {
	return &MelodiError{
		Type:        ErrorTypeHook,
		Code:        ErrCodeHookFailed,
		Message:     hook + " hook failed",
		Cause:       cause,
		Recoverable: true,
	}
}

// NewFetchError creates a template fetch error.
func NewFetchError(url string, cause error) *MelodiError {
	return &MelodiError{
		Type:        ErrorTypeFetch,
		Code:        ErrCodeTemplateFetch,
		Message:     "cannot fetch template " + url,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewMountError creates a mount error.
func NewMountError(code, message string, cause error) *MelodiError {
	return &MelodiError{
		Type:        ErrorTypeMount,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewBindingError creates a listener or binding error.
func NewBindingError(code, message string, cause error) *MelodiError {
	return &MelodiError{
		Type:        ErrorTypeBinding,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *MelodiError {
	return &MelodiError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *MelodiError {
	return &MelodiError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *MelodiError {
	return &MelodiError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var me *MelodiError
	if errors.As(err, &me) {
		return me.Recoverable
	}

	return false
}

// IsType reports whether err is a MelodiError of the given type.
func IsType(err error, t ErrorType) bool {
	var me *MelodiError
	if errors.As(err, &me) {
		return me.Type == t
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at the level its type calls for. Errors the runtime
// swallows by policy (evaluation, hook) go to debug, degraded content (fetch,
// binding) to warn, everything else to error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h == nil || h.logger == nil {
		return
	}

	var me *MelodiError
	if !errors.As(err, &me) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch me.Type {
	case ErrorTypeEvaluation, ErrorTypeHook:
		h.logger.Debug(ctx, "Error swallowed",
			"error", me.Error(),
			"type", me.Type,
			"code", me.Code,
			"tag", me.Component)
	case ErrorTypeFetch, ErrorTypeBinding, ErrorTypeValidation:
		h.logger.Warn(ctx, me, "Degraded",
			"type", me.Type,
			"code", me.Code,
			"tag", me.Component)
	default:
		h.logger.Error(ctx, me, "Error occurred",
			"type", me.Type,
			"code", me.Code,
			"tag", me.Component)
	}
}

// Common error codes.
const (
	ErrCodeMountTargetNotFound = "ERR_MOUNT_TARGET_NOT_FOUND"
	ErrCodeMountFailed         = "ERR_MOUNT_FAILED"
	ErrCodeTemplateFetch       = "ERR_TEMPLATE_FETCH"
	ErrCodeHookFailed          = "ERR_HOOK_FAILED"
	ErrCodeExpression          = "ERR_EXPRESSION"
	ErrCodeListenerNotFound    = "ERR_LISTENER_NOT_FOUND"
	ErrCodeUnknownAction       = "ERR_UNKNOWN_ACTION"
	ErrCodeNoRoute             = "ERR_NO_ROUTE"
	ErrCodeConfigInvalid       = "ERR_CONFIG_INVALID"
	ErrCodeManifestInvalid     = "ERR_MANIFEST_INVALID"
	ErrCodePathTraversal       = "ERR_PATH_TRAVERSAL"
	ErrCodeInternalError       = "ERR_INTERNAL"
	ErrCodeValidationFailed    = "ERR_VALIDATION_FAILED"
)

// FieldValidationError reports one invalid field.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(field string, value interface{}, message string) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
	}
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []*FieldValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	switch len(vec.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return vec.Errors[0].Error()
	}
	messages := make([]string, len(vec.Errors))
	for i, err := range vec.Errors {
		messages[i] = err.Error()
	}

	return fmt.Sprintf("validation failed with %d errors: %s", len(vec.Errors), strings.Join(messages, "; "))
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(field string, value interface{}, message string) {
	vec.Errors = append(vec.Errors, NewFieldValidationError(field, value, message))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToMelodiError converts the collection to a config error, or nil when empty.
func (vec *ValidationErrorCollection) ToMelodiError() *MelodiError {
	if !vec.HasErrors() {
		return nil
	}

	err := &MelodiError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: vec.Error(),
	}
	for _, fe := range vec.Errors {
		err.WithContext(fe.FieldName, fe.FieldValue)
	}

	return err
}
