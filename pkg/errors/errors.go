package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeTransientFetch represents network or timeout failures worth retrying
	ErrorTypeTransientFetch ErrorType = "transient_fetch"
	// ErrorTypeStructuralParse represents a payload no parser strategy recognizes
	ErrorTypeStructuralParse ErrorType = "structural_parse"
	// ErrorTypeSemanticEmpty represents a well-formed landing page or zero offers
	ErrorTypeSemanticEmpty ErrorType = "semantic_empty"
	// ErrorTypeExhaustedStrategies represents a chain where every strategy failed or was empty
	ErrorTypeExhaustedStrategies ErrorType = "exhausted_strategies"
	// ErrorTypeBudgetExceeded represents a spent time or attempt budget
	ErrorTypeBudgetExceeded ErrorType = "budget_exceeded"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents snapshot publisher errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeUnknown is returned by TypeOf for errors outside the taxonomy
	ErrorTypeUnknown ErrorType = "unknown"
)

// PipelineError is a classified failure raised by a pipeline component
type PipelineError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *PipelineError) IsRetryable() bool {
	return e.Type == ErrorTypeTransientFetch
}

// New creates a new PipelineError
func New(errType ErrorType, component, message string, err error) *PipelineError {
	return &PipelineError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewTransient creates a new transient fetch error
func NewTransient(component, message string, err error) *PipelineError {
	return New(ErrorTypeTransientFetch, component, message, err)
}

// NewStructural creates a new structural parse error
func NewStructural(component, message string, err error) *PipelineError {
	return New(ErrorTypeStructuralParse, component, message, err)
}

// NewSemanticEmpty creates a new semantic empty result
func NewSemanticEmpty(component, reason string) *PipelineError {
	return New(ErrorTypeSemanticEmpty, component, reason, nil)
}

// NewExhausted creates a new exhausted strategies error
func NewExhausted(component, reason string) *PipelineError {
	return New(ErrorTypeExhaustedStrategies, component, reason, nil)
}

// NewBudgetExceeded creates a new budget exceeded error
func NewBudgetExceeded(component, message string, err error) *PipelineError {
	return New(ErrorTypeBudgetExceeded, component, message, err)
}

// NewCache creates a new cache error
func NewCache(component, message string, err error) *PipelineError {
	return New(ErrorTypeCache, component, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *PipelineError {
	return New(ErrorTypePublisher, component, message, err)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *PipelineError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "config", message, err)
}

// TypeOf classifies any error. Context deadline and cancellation map to
// budget exceeded; unclassified errors map to ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return ErrorTypeBudgetExceeded
	}
	return ErrorTypeUnknown
}

// Is reports whether err is classified as errType
func Is(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// IsRetryable reports whether err is a transient fetch error
func IsRetryable(err error) bool {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return false
}
