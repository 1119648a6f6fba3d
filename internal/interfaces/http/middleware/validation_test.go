package middleware

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationProbe struct {
	PlanName string          `json:"plan_name" binding:"required,min=3"`
	Percent  decimal.Decimal `json:"percent" binding:"gte=0,lte=100"`
	Kind     string          `json:"kind" binding:"omitempty,oneof=percent fixed"`
}

func validateProbe(p validationProbe) error {
	SetupValidator()
	return binding.Validator.ValidateStruct(&p)
}

// ==================== Validation Tests ====================

func TestSetupValidator_ValidStruct(t *testing.T) {
	err := validateProbe(validationProbe{PlanName: "Deposit", Percent: decimal.NewFromInt(40), Kind: "percent"})
	assert.NoError(t, err)
}

func TestValidationDetails(t *testing.T) {
	err := validateProbe(validationProbe{PlanName: "ab", Percent: decimal.NewFromInt(120), Kind: "other"})
	require.Error(t, err)

	details := ValidationDetails(err)
	byField := map[string]string{}
	for _, d := range details {
		byField[d.Field] = d.Message
	}
	assert.Equal(t, "Must be at least 3 characters", byField["plan_name"])
	assert.Equal(t, "Must be less than or equal to 100", byField["percent"])
	assert.Equal(t, "Must be one of: percent fixed", byField["kind"])
}

func TestValidationDetails_Required(t *testing.T) {
	err := validateProbe(validationProbe{Percent: decimal.NewFromInt(-1)})
	require.Error(t, err)

	byField := map[string]string{}
	for _, d := range ValidationDetails(err) {
		byField[d.Field] = d.Message
	}
	assert.Equal(t, "This field is required", byField["plan_name"])
	assert.Equal(t, "Must be greater than or equal to 0", byField["percent"])
}

func TestValidationDetails_NotAValidationError(t *testing.T) {
	assert.Nil(t, ValidationDetails(errors.New("boom")))
	assert.Nil(t, ValidationDetails(nil))
}
