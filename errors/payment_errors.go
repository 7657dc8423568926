package errors

import (
	stderrors "errors"

	"opay/jsonx"
)

// PaymentErrorCode represents standardized error codes for the payment engine
type PaymentErrorCode string

const (
	// General errors
	ErrCodeInternal PaymentErrorCode = "internal_error"

	// Creation-path errors, returned synchronously and shown to the user
	ErrCodeKeyNotFound    PaymentErrorCode = "key_not_found"
	ErrCodeInvalidAmount  PaymentErrorCode = "invalid_amount"
	ErrCodeInvalidPayload PaymentErrorCode = "invalid_payload"
	ErrCodeSigningFailure PaymentErrorCode = "signing_failure"

	// Sync-path errors, absorbed by the engine and only logged/counted
	ErrCodeSyncUnavailable PaymentErrorCode = "sync_unavailable"
	ErrCodeSyncRejected    PaymentErrorCode = "sync_rejected"
)

// PaymentError represents a standardized engine error
type PaymentError struct {
	Code    PaymentErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Error implements the error interface
func (e *PaymentError) Error() string {
	err, _ := jsonx.Marshal(PaymentError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// Error message constants - user-friendly and concise
const (
	ErrMsgKeyNotFound     = "No signing key on this device, please log in while online first"
	ErrMsgInvalidAmount   = "Amount must be a positive number"
	ErrMsgInvalidPayload  = "Transaction payload is invalid"
	ErrMsgSigningFailure  = "Could not sign the transaction"
	ErrMsgSyncUnavailable = "Network is unavailable, transactions stay queued"
	ErrMsgSyncRejected    = "The verifier rejected the pending batch"
	ErrMsgInternal        = "Internal error, please try again"
)

// NewError creates a new PaymentError and returns it as error interface
func NewError(code PaymentErrorCode, message string) error {
	return &PaymentError{
		Code:    code,
		Message: message,
	}
}

// IsCode reports whether err is a PaymentError carrying the given code.
func IsCode(err error, code PaymentErrorCode) bool {
	var pe *PaymentError
	if stderrors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
