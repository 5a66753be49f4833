package services

import (
	"errors"

	"github.com/SAP-F-2025/cat-service/internal/cat"
	apperrors "github.com/SAP-F-2025/cat-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Session specific errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is not active")
	ErrItemMismatch     = errors.New("answer does not match the pending item")
	ErrMalformedAnswer  = errors.New("answer must carry selected_option or is_correct")
	ErrUnknownExamType  = errors.New("unknown exam type")
	ErrSessionNotEnded  = errors.New("session has not ended")

	// Item specific errors
	ErrItemNotFound        = errors.New("item not found")
	ErrItemImmutable       = errors.New("published items cannot be edited")
	ErrItemInvalidStatus   = errors.New("invalid item status transition")
	ErrUnsupportedFileType = errors.New("unsupported import file type")
)

// ItemBankExhausted is re-exported so callers only need this package
var ErrItemBankExhausted = cat.ErrItemBankExhausted

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrItemNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrMalformedAnswer) ||
		errors.Is(err, ErrUnknownExamType) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrUnsupportedFileType) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var fe *apperrors.ValidationError
	return errors.As(err, &fe)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrItemMismatch) ||
		errors.Is(err, ErrSessionNotEnded) ||
		errors.Is(err, ErrItemImmutable) ||
		errors.Is(err, ErrItemInvalidStatus) ||
		errors.Is(err, ErrItemBankExhausted)
}

// IsItemBankExhausted reports whether the session ended because the bank ran dry
func IsItemBankExhausted(err error) bool {
	return errors.Is(err, ErrItemBankExhausted)
}
