package apperror

import (
	"errors"
	"fmt"
)

// Kind enumerates the machine readable failure categories surfaced to clients.
type Kind string

const (
	KindNotFound          Kind = "RESOURCE_NOT_FOUND"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindInvalidState      Kind = "INVALID_STATUS"
	KindDuplicate         Kind = "DUPLICATE_ERROR"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindBusinessRule      Kind = "BUSINESS_ERROR"
	KindInternal          Kind = "INTERNAL_SERVER_ERROR"
)

// Error is a typed failure carrying a kind, a human message and optional details.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, message string, details ...string) *Error {
	if message == "" {
		message = string(kind)
	}
	return &Error{Kind: kind, Message: message, Details: details}
}

func NotFound(resource string, id int64) *Error {
	return New(KindNotFound, fmt.Sprintf("%s not found with id: %d", resource, id))
}

func InsufficientStock(productName string, available, requested int64) *Error {
	return New(KindInsufficientStock,
		fmt.Sprintf("Insufficient stock for product: %s", productName),
		fmt.Sprintf("Available: %d, Requested: %d", available, requested))
}

func InvalidState(current string, action string) *Error {
	return New(KindInvalidState,
		fmt.Sprintf("Cannot %s order", action),
		fmt.Sprintf("Order status is %s, only CREATED orders can be %s", current, pastTense(action)))
}

func Duplicate(resource, field, value string) *Error {
	return New(KindDuplicate,
		fmt.Sprintf("%s with this %s already exists", resource, field),
		fmt.Sprintf("%s: %s", field, value))
}

func Validation(message string, details ...string) *Error {
	return New(KindValidation, message, details...)
}

func BusinessRule(message string, details ...string) *Error {
	return New(KindBusinessRule, message, details...)
}

// Internal wraps an unexpected failure. The message is deliberately generic.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "An unexpected error occurred", Err: err}
}

// KindOf classifies err. Anything that is not an *Error is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func pastTense(action string) string {
	switch action {
	case "pay":
		return "paid"
	case "cancel":
		return "cancelled"
	}
	return action + "ed"
}
