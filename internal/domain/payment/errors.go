package payment

import (
	"errors"
	"fmt"
)

// Kind classifies a payment failure. The set is closed: adapters translate
// whatever their provider returns into one of these.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindUnsupportedProvider Kind = "unsupported_provider"
	KindAuthFailure         Kind = "auth_failure"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindRejectedByProvider  Kind = "rejected_by_provider"
	KindTimeout             Kind = "timeout"
	KindMalformedCallback   Kind = "malformed_callback"
	KindUnknown             Kind = "unknown"
)

// Error carries a canonical kind plus the provider-native diagnostics.
// NativeCode and NativeBody are for logs only and must never surface to
// end users.
type Error struct {
	Kind       Kind
	Message    string
	NativeCode string
	NativeBody string
}

func (e *Error) Error() string {
	if e.NativeCode != "" {
		return fmt.Sprintf("%s: %s (native code %s)", e.Kind, e.Message, e.NativeCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a payment error with a canonical kind and human message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewProviderError keeps the provider's raw code and body for diagnostics.
func NewProviderError(kind Kind, message, nativeCode, nativeBody string) *Error {
	return &Error{Kind: kind, Message: message, NativeCode: nativeCode, NativeBody: nativeBody}
}

// KindOf extracts the canonical kind from any error chain.
// Errors without a payment.Error in the chain are KindUnknown.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the failure may succeed on a later attempt.
// Business rejections and bad input never retry.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindAuthFailure, KindProviderUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}
