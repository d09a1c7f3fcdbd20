package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

// Sentinel categories for the ledger core. Every core error wraps exactly
// one of these, so callers can classify with errors.Is.
var (
	// ErrValidation covers bad input caught before any mutation: missing
	// account reference, invalid date, non-positive amount, bad range.
	ErrValidation = errors.New("validation error")

	// ErrNotFound covers lookups of entities that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrReferentialIntegrity covers deletes of entities still referenced
	// by transactions or schedules; no partial state change occurs.
	ErrReferentialIntegrity = errors.New("referential integrity violation")

	// ErrConversion is returned after a failed schedule conversion has
	// already rolled itself back; callers must treat it as "nothing
	// happened".
	ErrConversion = errors.New("conversion failed")
)

// ValidationErrorf builds an ErrValidation with a formatted message.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundErrorf builds an ErrNotFound with a formatted message.
func NotFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// ReferentialErrorf builds an ErrReferentialIntegrity with a formatted
// message.
func ReferentialErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReferentialIntegrity, fmt.Sprintf(format, args...))
}

// ConversionErrorf builds an ErrConversion with a formatted message.
func ConversionErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConversion, fmt.Sprintf(format, args...))
}

type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ToAPIError maps a core error onto the HTTP error shape.
func ToAPIError(err error) *APIError {
	switch {
	case errors.Is(err, ErrValidation):
		return &APIError{StatusCode: fiber.StatusBadRequest, Code: "VALIDATION_ERROR", Message: err.Error()}
	case errors.Is(err, ErrNotFound):
		return &APIError{StatusCode: fiber.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, ErrReferentialIntegrity):
		return &APIError{StatusCode: fiber.StatusConflict, Code: "REFERENTIAL_INTEGRITY", Message: err.Error()}
	case errors.Is(err, ErrConversion):
		return &APIError{StatusCode: fiber.StatusConflict, Code: "CONVERSION_FAILED", Message: err.Error()}
	default:
		return &APIError{StatusCode: fiber.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "An internal error occurred", Details: err.Error()}
	}
}

// ErrorHandler is a middleware to handle APIError and core errors
func ErrorHandler(c fiber.Ctx, err error) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		apiErr = ToAPIError(err)
	}

	return c.Status(apiErr.StatusCode).JSON(apiErr)
}
