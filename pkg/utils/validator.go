package utils

import (
	"fmt"
	"regexp"
)

var (
	vatNumberRegex = regexp.MustCompile(`^3\d{13}3$`)
	otpRegex       = regexp.MustCompile(`^\d{6}$`)
)

// ValidateVATNumber validates a Saudi VAT registration number: 15 digits,
// first and last digit 3
func ValidateVATNumber(vat string) error {
	if !vatNumberRegex.MatchString(vat) {
		return fmt.Errorf("invalid VAT registration number: %s", vat)
	}
	return nil
}

// ValidateOTP validates a portal one-time code (6 digits)
func ValidateOTP(otp string) error {
	if !otpRegex.MatchString(otp) {
		return fmt.Errorf("one-time code must be 6 digits")
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
