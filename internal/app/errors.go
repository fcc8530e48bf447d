/**
 * @description
 * Typed business errors for the checkout path. Each validation failure in
 * the orchestrator short-circuits with a distinct code; the API layer maps
 * the code to an HTTP status and returns the user-safe Dutch message
 * without leaking internals.
 */

package app

import "net/http"

// ErrorCode identifies why a checkout request was rejected.
type ErrorCode string

const (
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeAlreadyFunded          ErrorCode = "ALREADY_FUNDED"
	CodePaymentsNotReady       ErrorCode = "PAYMENTS_NOT_READY"
	CodeAmountTooLow           ErrorCode = "AMOUNT_TOO_LOW"
	CodeAmountExceedsRemaining ErrorCode = "AMOUNT_EXCEEDS_REMAINING"
	CodeValidation             ErrorCode = "VALIDATION_ERROR"
	CodeRateLimited            ErrorCode = "RATE_LIMITED"
	CodeUpstreamFailure        ErrorCode = "UPSTREAM_FAILURE"
)

// CheckoutError carries a rejection code and a user-safe message.
type CheckoutError struct {
	Code    ErrorCode
	Message string
}

func (e *CheckoutError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// HTTPStatus maps the error code to the response status the API returns.
func (e *CheckoutError) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstreamFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func newCheckoutError(code ErrorCode, message string) *CheckoutError {
	return &CheckoutError{Code: code, Message: message}
}
