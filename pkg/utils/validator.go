package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex          = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	currencyRegex       = regexp.MustCompile(`^[A-Z]{3}$`)
	contractNumberRegex = regexp.MustCompile(`^CTR-\d{4}-\d{6}$`)
	controlCharRegex    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateCurrency validates an ISO 4217 style currency code
func ValidateCurrency(code string) error {
	if !currencyRegex.MatchString(code) {
		return fmt.Errorf("invalid currency code: %s", code)
	}
	return nil
}

// ValidateAmount validates a contract amount
func ValidateAmount(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("amount must not be negative: %.2f", amount)
	}
	if amount > 1e12 {
		return fmt.Errorf("amount exceeds maximum limit: %.2f", amount)
	}
	return nil
}

// ValidateContractNumber checks the CTR-YYYY-NNNNNN format
func ValidateContractNumber(number string) error {
	if !contractNumberRegex.MatchString(number) {
		return fmt.Errorf("invalid contract number: %s", number)
	}
	return nil
}

// SanitizeString trims the string and removes control characters other than tab and newlines
func SanitizeString(s string) string {
	return strings.TrimSpace(controlCharRegex.ReplaceAllString(s, ""))
}
