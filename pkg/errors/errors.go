package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeBadRequest   ErrorType = "BAD_REQUEST"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeInternal     ErrorType = "INTERNAL"
)

// Well-known error codes carried by AppError. Callers and tests match on
// these instead of on message text.
const (
	CodeNodeNotFound            = "NodeNotFound"
	CodeFolderNotFound          = "FolderNotFound"
	CodeSmartFolderNodeNotFound = "SmartFolderNodeNotFound"
	CodeApiKeyNodeNotFound      = "ApiKeyNodeNotFound"
	CodeFeatureNotFound         = "FeatureNotFound"
	CodeNodeFileNotFound        = "NodeFileNotFound"
	CodeUnauthorized            = "Unauthorized"
	CodeForbidden               = "Forbidden"
	CodeBadRequest              = "BadRequest"
	CodeValidationError         = "ValidationError"
	CodeAggregationFormula      = "AggregationFormulaError"
	CodeUnknown                 = "Unknown"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    CodeValidationError,
		Message: message,
	}
}

// NewBadRequest creates a bad request error
func NewBadRequest(message string) error {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeBadRequest,
		Message: message,
	}
}

// NewNotFound creates a not found error with the generic NodeNotFound code
func NewNotFound(message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeNodeNotFound,
		Message: message,
	}
}

// NewNotFoundWithCode creates a not found error with a specific code
// (FolderNotFound, SmartFolderNodeNotFound, ...).
func NewNotFoundWithCode(code, message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewUnauthorized creates an unauthorized error (anonymous caller lacking permission)
func NewUnauthorized(message string) error {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewForbidden creates a forbidden error (authenticated caller lacking permission)
func NewForbidden(message string) error {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewAggregationFormula creates an error for a malformed smart folder aggregation
func NewAggregationFormula(message string) error {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeAggregationFormula,
		Message: message,
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    CodeUnknown,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type and code
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	// Otherwise, create an internal error
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    CodeUnknown,
		Message: message,
		Err:     err,
	}
}

// PropertyError describes a single failed property check from the aspect validator.
type PropertyError struct {
	Property string `json:"property"`
	Message  string `json:"message"`
}

func (e PropertyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Property, e.Message)
}

// ValidationErrors aggregates one or more property-level errors into a single
// ValidationError result, the way the aspect validator reports them.
type ValidationErrors struct {
	Errors []PropertyError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		msgs = append(msgs, pe.Error())
	}
	return fmt.Sprintf("%s: %s", CodeValidationError, strings.Join(msgs, "; "))
}

// NewValidationErrors creates an aggregate validation error. Returns nil when
// the list is empty so callers can return it unconditionally.
func NewValidationErrors(errs []PropertyError) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationErrors{Errors: errs}
}

// Type checking functions

// IsValidation checks if an error is a validation error (single or aggregate)
func IsValidation(err error) bool {
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	return isType(err, ErrorTypeValidation)
}

// IsBadRequest checks if an error is a bad request error
func IsBadRequest(err error) bool {
	return isType(err, ErrorTypeBadRequest)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsForbidden checks if an error is a forbidden error
func IsForbidden(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// Code returns the error code carried by err, or Unknown for foreign errors.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		return CodeValidationError
	}
	return CodeUnknown
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}
