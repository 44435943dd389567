package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Business Logic (LED) ----

func ErrInsufficientBalance() *AppError {
	return New("LED_001", "Insufficient realized balance", http.StatusPaymentRequired)
}

func ErrUnauthorized() *AppError {
	return New("LED_002", "Caller lacks the required role", http.StatusForbidden)
}

func ErrRateChangeRejected() *AppError {
	return New("LED_003", "Global rate may only decrease", http.StatusUnprocessableEntity)
}

func ErrBalanceOverflow() *AppError {
	return New("LED_004", "Balance exceeds representable range", http.StatusUnprocessableEntity)
}

func ErrInvalidAmount() *AppError {
	return New("LED_005", "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_006", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrSelfTransfer() *AppError {
	return New("LED_007", "Cannot transfer to the sending account", http.StatusBadRequest)
}

// ---- Vault (VLT) ----

func ErrAssetTransferFailed(err error) *AppError {
	return Wrap("VLT_001", "Base asset transfer failed, operation rolled back", http.StatusUnprocessableEntity, err)
}

func ErrInsufficientAssetBalance() *AppError {
	return New("VLT_002", "Insufficient base asset balance", http.StatusPaymentRequired)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_005-style validation error.
func Validation(message string) *AppError {
	return New("LED_005", message, http.StatusBadRequest)
}
