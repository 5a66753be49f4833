package errors

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := NewValidationErrorWithRule("difficulty", "must be at most 6", "lte", 7.5)

	assert.Equal(t, "difficulty", err.Field)
	assert.Equal(t, "lte", err.Rule)
	assert.Equal(t, 7.5, err.Value)
	assert.Equal(t, "validation error on field 'difficulty': must be at most 6", err.Error())
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "validation failed", errs.Error())

	errs = append(errs, *NewValidationError("item_id", "is required", nil))
	assert.Equal(t, "validation failed: item_id is required", errs.Error())

	errs = append(errs, *NewValidationError("session_id", "is required", nil))
	assert.Equal(t, "validation failed: 2 field errors", errs.Error())

	wrapped := errors.Join(errors.New("answer rejected"), errs)
	var target ValidationErrors
	require.True(t, errors.As(wrapped, &target))
	assert.Len(t, target, 2)
}

type answerPayload struct {
	SessionID      string  `validate:"required,max=36"`
	Discrimination float64 `validate:"gt=0,lte=6"`
	Mode           string  `validate:"oneof=abandon evaluate"`
}

func TestToValidationErrors(t *testing.T) {
	v := validator.New()
	err := v.Struct(answerPayload{Discrimination: 9, Mode: "pause"})
	require.Error(t, err)

	errs := ToValidationErrors(err)
	require.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "is required", byField["SessionID"].Message)
	assert.Equal(t, "must be at most 6", byField["Discrimination"].Message)
	assert.Equal(t, "lte", byField["Discrimination"].Rule)
	assert.Equal(t, "must be one of: abandon evaluate", byField["Mode"].Message)

	assert.Empty(t, ToValidationErrors(errors.New("not a validator error")))
}
