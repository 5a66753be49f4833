package validator

import (
	"fmt"

	apperrors "github.com/SAP-F-2025/cat-service/internal/errors"
	"github.com/SAP-F-2025/cat-service/internal/models"
)

const (
	minOptions = 2
	maxOptions = 10
)

// ItemValidator handles item rules struct tags cannot express
type ItemValidator struct{}

// NewItemValidator creates a new item validator
func NewItemValidator() *ItemValidator {
	return &ItemValidator{}
}

// ValidateItem checks options, the answer key and the IRT parameters.
func (v *ItemValidator) ValidateItem(item *models.Item) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors

	if item.Text == "" {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("text", "is required", "required", nil))
	}
	if item.ContentDomain == "" {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("content_domain", "is required", "required", nil))
	}

	options := item.Options.Data()
	if len(options) < minOptions || len(options) > maxOptions {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("options",
			fmt.Sprintf("must have between %d and %d options", minOptions, maxOptions), "options_count", len(options)))
	}

	keys := make(map[string]bool, len(options))
	for _, opt := range options {
		if opt.Key == "" || opt.Text == "" {
			errs = append(errs, *apperrors.NewValidationErrorWithRule("options", "option key and text are required", "required", opt))
			continue
		}
		if keys[opt.Key] {
			errs = append(errs, *apperrors.NewValidationErrorWithRule("options", "duplicate option key", "unique", opt.Key))
		}
		keys[opt.Key] = true
	}
	if item.CorrectAnswer != "" && len(options) > 0 && !keys[item.CorrectAnswer] {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("correct_answer", "does not match any option key", "option_key", item.CorrectAnswer))
	}

	params := item.Params()
	if err := params.Validate(); err != nil {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("irt_parameters", err.Error(), "irt_parameters", params))
	}

	return errs
}

// ValidateImmutable rejects edits to published items.
func (v *ItemValidator) ValidateImmutable(item *models.Item) error {
	if item.IsPublished() {
		return fmt.Errorf("item %d is published and cannot be modified", item.ID)
	}
	return nil
}
