package booking

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the booking service.
var (
	ErrInvalidDate              = errors.New("invalid date")
	ErrInvalidDateRange         = errors.New("invalid date range")
	ErrInvalidGuestCount        = errors.New("invalid guest count")
	ErrInvalidPrice             = errors.New("invalid price")
	ErrInvalidAmountCents       = errors.New("invalid amount cents")
	ErrInvalidCurrency          = errors.New("invalid currency")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrRoomNotFound             = errors.New("room not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrRoomUnavailable          = errors.New("room unavailable")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrVersionConflict          = errors.New("version conflict")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// GatewayError reports a payment-processor failure. Local state is
// never mutated before the call that produced one, so callers may
// retry safely.
type GatewayError struct {
	operation string
	intentRef string
	err       error
}

// NewGatewayError wraps a processor failure with its operation context.
func NewGatewayError(operation string, intentRef string, err error) GatewayError {
	return GatewayError{operation: operation, intentRef: intentRef, err: err}
}

// Error returns the formatted error message.
func (gatewayError GatewayError) Error() string {
	if gatewayError.intentRef == "" {
		return fmt.Sprintf("gateway %s: %v", gatewayError.operation, gatewayError.err)
	}
	return fmt.Sprintf("gateway %s (%s): %v", gatewayError.operation, gatewayError.intentRef, gatewayError.err)
}

// Unwrap returns the processor error.
func (gatewayError GatewayError) Unwrap() error {
	return gatewayError.err
}

// Operation returns the failed gateway call.
func (gatewayError GatewayError) Operation() string {
	return gatewayError.operation
}

// IntentRef returns the payment intent involved, when known.
func (gatewayError GatewayError) IntentRef() string {
	return gatewayError.intentRef
}

// IsGatewayError reports whether err originated at the processor boundary.
func IsGatewayError(err error) bool {
	var gatewayError GatewayError
	return errors.As(err, &gatewayError)
}
