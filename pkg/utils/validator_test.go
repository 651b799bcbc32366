package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("li.wei@example.com"))
	assert.Error(t, ValidateEmail("li.wei@"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateCurrency(t *testing.T) {
	assert.NoError(t, ValidateCurrency("CNY"))
	assert.Error(t, ValidateCurrency("cny"))
	assert.Error(t, ValidateCurrency("YUAN"))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(0))
	assert.NoError(t, ValidateAmount(500000))
	assert.Error(t, ValidateAmount(-1))
	assert.Error(t, ValidateAmount(2e12))
}

func TestValidateContractNumber(t *testing.T) {
	assert.NoError(t, ValidateContractNumber("CTR-2026-000042"))
	assert.Error(t, ValidateContractNumber("CTR-26-42"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "line one\nline two", SanitizeString("  line one\nline two\x00\x07 "))
}
