package stripe

import (
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"
)

// StripeError represents a Stripe-specific error
type StripeError struct {
	Code    string
	Message string
	Type    string
	Err     error
}

func (e *StripeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stripe error [%s]: %s", e.Code, e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

// Is matches two StripeErrors by code, so wrapped errors compare equal to the
// sentinels below.
func (e *StripeError) Is(target error) bool {
	t, ok := target.(*StripeError)
	return ok && t.Code == e.Code
}

// Error codes
const (
	CodeInvalidEvent          = "invalid_event"
	CodeEventAlreadyProcessed = "event_already_processed"
	CodePaymentNotFound       = "payment_not_found"
	CodeAccountNotFound       = "account_not_found"
	CodeInvalidTransition     = "invalid_transition"
	CodeInvalidConfiguration  = "invalid_configuration"
	CodeInvalidRequest        = "invalid_request"
	CodeAPICallFailed         = "api_call_failed"
	CodeWebhookValidation     = "webhook_validation"
	CodeStorageFailed         = "storage_failed"
)

// Common Stripe errors
var (
	ErrInvalidEvent          = &StripeError{Code: CodeInvalidEvent, Message: "invalid webhook event"}
	ErrEventAlreadyProcessed = &StripeError{Code: CodeEventAlreadyProcessed, Message: "webhook event already processed"}
	ErrPaymentNotFound       = &StripeError{Code: CodePaymentNotFound, Message: "payment not found"}
	ErrAccountNotFound       = &StripeError{Code: CodeAccountNotFound, Message: "connect account not found"}
	ErrInvalidConfiguration  = &StripeError{Code: CodeInvalidConfiguration, Message: "invalid stripe configuration"}
	ErrInvalidRequest        = &StripeError{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrAPICallFailed         = &StripeError{Code: CodeAPICallFailed, Message: "stripe API call failed"}
	ErrWebhookValidation     = &StripeError{Code: CodeWebhookValidation, Message: "webhook signature validation failed"}
)

// NewStripeError creates a new StripeError with the given code, message, and underlying error
func NewStripeError(code, message string, err error) *StripeError {
	se := &StripeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
	var apiErr *stripeapi.Error
	if errors.As(err, &apiErr) {
		se.Type = string(apiErr.Type)
	}
	return se
}

// IsRetryableError determines if an error is retryable
func IsRetryableError(err error) bool {
	var stripeErr *StripeError
	if !errors.As(err, &stripeErr) {
		return false
	}
	switch stripeErr.Code {
	case CodeAPICallFailed, CodeStorageFailed:
		var apiErr *stripeapi.Error
		if errors.As(stripeErr.Err, &apiErr) {
			return apiErr.Type == stripeapi.ErrorTypeAPI || apiErr.HTTPStatusCode == 429
		}
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err refers to a missing Stripe object.
func IsNotFound(err error) bool {
	var apiErr *stripeapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == stripeapi.ErrorCodeResourceMissing || apiErr.HTTPStatusCode == 404
	}
	return false
}
