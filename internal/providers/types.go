package providers

import (
	"context"
	"errors"
)

// Adapter uploads a local file or folder to one hosting service and returns a shareable link
type Adapter interface {
	// Name is the display name used as the key of the link map
	Name() string
	// Engine is the label reported while this adapter is active
	Engine() string
	Upload(ctx context.Context, path string, progress Observer) (*Result, error)
}

// Result is what an adapter produced for one path
type Result struct {
	Link     string `json:"link"`
	MimeType string `json:"mime_type"`
	Files    int    `json:"files"`
	Folders  int    `json:"folders"`
}

// ErrorType represents different categories of provider errors
type ErrorType int

const (
	ErrorTypeUnknown       ErrorType = iota
	ErrorTypeIO                      // Local file could not be opened or read
	ErrorTypeNetwork                 // Transient network failure
	ErrorTypeAPI                     // Provider answered with an unusable result
	ErrorTypeConfiguration           // Bad credentials or unsupported path type
	ErrorTypeExhausted               // No enabled provider produced a link
	ErrorTypeCancelled               // Upload stopped by the user
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeIO:
		return "io"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeAPI:
		return "api"
	case ErrorTypeConfiguration:
		return "configuration"
	case ErrorTypeExhausted:
		return "exhausted"
	case ErrorTypeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProviderError represents a structured provider error
type ProviderError struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`      // Provider-specific error code
	Message   string    `json:"message"`   // Human-readable error message
	Retryable bool      `json:"retryable"` // Whether this error is retryable
	Cause     error     `json:"-"`         // Original error for logging
}

// Error implements the error interface
func (pe *ProviderError) Error() string {
	if pe.Code != "" {
		return pe.Message + " (code: " + pe.Code + ")"
	}
	return pe.Message
}

// Unwrap returns the underlying cause
func (pe *ProviderError) Unwrap() error {
	return pe.Cause
}

// Is matches another *ProviderError of the same type
func (pe *ProviderError) Is(target error) bool {
	if targetProvider, ok := target.(*ProviderError); ok {
		return pe.Type == targetProvider.Type
	}
	return false
}

// NewProviderError creates a new ProviderError
func NewProviderError(errorType ErrorType, code, message string, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// Predefined error constructors
func NewIOError(message string, cause error) *ProviderError {
	return NewProviderError(ErrorTypeIO, "", message, false, cause)
}

func NewNetworkError(message string, cause error) *ProviderError {
	return NewProviderError(ErrorTypeNetwork, "", message, true, cause)
}

func NewAPIError(code, message string, cause error) *ProviderError {
	return NewProviderError(ErrorTypeAPI, code, message, false, cause)
}

func NewConfigurationError(message string, cause error) *ProviderError {
	return NewProviderError(ErrorTypeConfiguration, "", message, false, cause)
}

func NewExhaustedError(message string, cause error) *ProviderError {
	return NewProviderError(ErrorTypeExhausted, "", message, false, cause)
}

func NewCancelledError(message string, cause error) *ProviderError {
	return NewProviderError(ErrorTypeCancelled, "", message, false, cause)
}

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error
func GetErrorType(err error) ErrorType {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Type
	}
	return ErrorTypeUnknown
}
