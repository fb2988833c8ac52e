package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context, creating a MelodiError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *MelodiError {
	if err == nil {
		return nil
	}

	var me *MelodiError
	if errors.As(err, &me) {
		return &MelodiError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       me,
			Context:     me.Context,
			Component:   me.Component,
			FilePath:    me.FilePath,
			Recoverable: me.Recoverable,
		}
	}

	return &MelodiError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType != ErrorTypeInternal && errType != ErrorTypeConfig,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Safely runs fn and converts a panic into an internal error. It is used at
// every call site that invokes author code (hooks, methods, event handlers).
func Safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = NewInternalError(ErrCodeInternalError, "recovered panic", e)
				return
			}
			err = NewInternalError(ErrCodeInternalError, fmt.Sprintf("recovered panic: %v", r), nil)
		}
	}()
	return fn()
}

// CollectErrors helper for common error collection patterns
func CollectErrors(errs ...error) []error {
	var collected []error
	for _, err := range errs {
		if err != nil {
			collected = append(collected, err)
		}
	}
	return collected
}

// CombineErrors combines multiple errors into a single error with context
func CombineErrors(errs ...error) error {
	nonNilErrs := CollectErrors(errs...)
	if len(nonNilErrs) == 0 {
		return nil
	}
	if len(nonNilErrs) == 1 {
		return nonNilErrs[0]
	}

	var messages []string
	for _, err := range nonNilErrs {
		messages = append(messages, err.Error())
	}

	return &MelodiError{
		Type:    ErrorTypeInternal,
		Code:    "ERR_MULTIPLE_ERRORS",
		Message: fmt.Sprintf("multiple errors occurred: %d errors", len(nonNilErrs)),
		Cause:   errors.Join(nonNilErrs...),
		Context: map[string]interface{}{
			"error_count": len(nonNilErrs),
			"errors":      messages,
		},
		Recoverable: false,
	}
}
