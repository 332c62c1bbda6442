// Package errors provides custom error types and definitions for the application.
//
//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 401, 403, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXXX or 5XXXX.
// If you notice there's a gap, DON'T fill it in, that code was used in the past and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	// Authentication and authorization errors (401, 403)
	ErrUnauthorized        = Error{Code: 40001, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("authentication required"), LogLevel: "info"}
	ErrForbiddenRole       = Error{Code: 40002, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("role not allowed to perform this action"), LogLevel: "info"}
	ErrInvalidWebhookEvent = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid webhook event"), LogLevel: "info"}

	// Validation errors (400)
	ErrMalformedBody      = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrInvalidAction      = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unsupported action")}
	ErrMissingAction      = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("action is required")}
	ErrInvalidData        = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid data provided")}
	ErrMalformedURLParam  = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid URL parameter")}
	ErrInvalidAgentData   = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid agent information provided")}
	ErrInvalidSignalData  = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid demand signal provided")}
	ErrInvalidPaymentData = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid payment information provided")}
	ErrInvalidWallet      = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid wallet address or transaction hash")}

	// Not found errors (404)
	ErrFunctionNotFound = Error{Code: 40012, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("function not found")}
	ErrAgentNotFound    = Error{Code: 40013, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("agent not found")}
	ErrPaymentNotFound  = Error{Code: 40014, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("payment not found")}
	ErrAuditNotFound    = Error{Code: 40015, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("no system audit available")}
	ErrAccountNotFound  = Error{Code: 40016, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("connect account not found")}

	// Conflict errors (409)
	ErrDuplicateConflict       = Error{Code: 40901, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("resource already exists")}
	ErrSchedulerBusy           = Error{Code: 40902, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("agent scheduler run already in progress"), LogLevel: "info"}
	ErrOrchestratorBusy        = Error{Code: 40903, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("orchestrator cycle already in progress"), LogLevel: "info"}
	ErrInvalidStatusTransition = Error{Code: 40904, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("status transition not allowed")}

	// Server errors (500, 503)
	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: failed to process response"), LogLevel: "error"}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: operation failed"), LogLevel: "error"}
	ErrStripeError                = Error{Code: 50005, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: payment processing failed"), LogLevel: "error"}
	ErrInternalStorageError       = Error{Code: 50006, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: storage operation failed"), LogLevel: "error"}
	ErrStripeWebhookError         = Error{Code: 50008, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: stripe webhook failed"), LogLevel: "error"}
	ErrStripeNotConfigured        = Error{Code: 50009, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("server error: payments are not configured"), LogLevel: "warn"}
	ErrBrainNotConfigured         = Error{Code: 50010, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("server error: AI completion endpoint is not configured"), LogLevel: "warn"}
	ErrBrainCompletionFailed      = Error{Code: 50011, HTTPstatus: http.StatusBadGateway, Err: fmt.Errorf("server error: AI completion failed"), LogLevel: "error"}
	ErrAuditFailed                = Error{Code: 50012, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: system audit failed"), LogLevel: "error"}
)
