package venue

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode is the stable classification shared by every adapter. Callers
// branch on codes, never on venue-specific message text.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeConnection        ErrorCode = "CONNECTION_ERROR"
	CodeAuthentication    ErrorCode = "AUTHENTICATION_ERROR"
	CodeRateLimit         ErrorCode = "RATE_LIMIT_ERROR"
	CodeOrder             ErrorCode = "ORDER_ERROR"
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS_ERROR"
	CodeInvalidSymbol     ErrorCode = "INVALID_SYMBOL_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND_ERROR"
	CodeReconciliation    ErrorCode = "RECONCILIATION_ERROR"
)

// Error is the uniform venue error. RetryAfter is only set for rate-limit
// errors, Symbol only for invalid-symbol errors.
type Error struct {
	Code       ErrorCode     `json:"code"`
	Venue      string        `json:"venue,omitempty"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Symbol     string        `json:"symbol,omitempty"`
	Err        error         `json:"-"`
}

func (e *Error) Error() string {
	if e.Venue != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Venue, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidationError(format string, v ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, v...)}
}

func NewConnectionError(venue, msg string, cause error) *Error {
	return &Error{Code: CodeConnection, Venue: venue, Message: msg, Err: cause}
}

func NewAuthenticationError(venue, msg string, cause error) *Error {
	return &Error{Code: CodeAuthentication, Venue: venue, Message: msg, Err: cause}
}

func NewRateLimitError(venue string, retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimit,
		Venue:      venue,
		Message:    fmt.Sprintf("rate limit exceeded, retry after %s", retryAfter),
		RetryAfter: retryAfter,
	}
}

func NewOrderError(venue, msg string, cause error) *Error {
	return &Error{Code: CodeOrder, Venue: venue, Message: msg, Err: cause}
}

func NewInsufficientFundsError(venue, msg string) *Error {
	return &Error{Code: CodeInsufficientFunds, Venue: venue, Message: msg}
}

func NewInvalidSymbolError(venue, sym string) *Error {
	return &Error{
		Code:    CodeInvalidSymbol,
		Venue:   venue,
		Message: fmt.Sprintf("symbol not supported: %s", sym),
		Symbol:  sym,
	}
}

func NewNotFoundError(venue, msg string) *Error {
	return &Error{Code: CodeNotFound, Venue: venue, Message: msg}
}

// NewReconciliationError marks a failure of the reconciliation machinery
// itself, storage above all, as opposed to a venue refusing a call.
func NewReconciliationError(venue, msg string, cause error) *Error {
	return &Error{Code: CodeReconciliation, Venue: venue, Message: msg, Err: cause}
}

// CodeOf extracts the taxonomy code from err, or "" when err is not a venue
// error.
func CodeOf(err error) ErrorCode {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsTransient reports whether err is worth retrying: connection failures and
// rate limits clear on their own, everything else does not.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case CodeConnection, CodeRateLimit:
		return true
	default:
		return false
	}
}

// RetryAfterOf returns the retry-after hint carried by a rate-limit error.
func RetryAfterOf(err error) (time.Duration, bool) {
	var ve *Error
	if errors.As(err, &ve) && ve.Code == CodeRateLimit {
		return ve.RetryAfter, true
	}
	return 0, false
}
