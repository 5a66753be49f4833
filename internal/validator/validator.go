package validator

import (
	"reflect"
	"strings"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator is the main validator instance that combines all validation types
type Validator struct {
	structValidator *validator.Validate
	itemValidator   *ItemValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
		itemValidator:   NewItemValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate performs struct validation and converts failures into
// ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Item returns the item validator
func (v *Validator) Item() *ItemValidator {
	return v.itemValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("item_status", validateItemStatus)
	validate.RegisterValidation("bloom_level", validateBloomLevel)
	validate.RegisterValidation("finish_mode", validateFinishMode)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateItemStatus(fl validator.FieldLevel) bool {
	switch models.ItemStatus(fl.Field().String()) {
	case models.ItemDraft, models.ItemPublished, models.ItemRetired:
		return true
	}
	return false
}

func validateBloomLevel(fl validator.FieldLevel) bool {
	validLevels := []models.BloomLevel{
		models.BloomRemember,
		models.BloomUnderstand,
		models.BloomApply,
		models.BloomAnalyze,
		models.BloomEvaluate,
		models.BloomCreate,
	}

	value := fl.Field().String()
	for _, level := range validLevels {
		if string(level) == value {
			return true
		}
	}
	return false
}

func validateFinishMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "abandon", "evaluate":
		return true
	}
	return false
}
