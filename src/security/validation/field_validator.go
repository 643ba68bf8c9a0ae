package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxUsernameLength = 50
	MaxSymbolLength   = 12
	MinPasswordLength = 8
)

var (
	symbolPattern     = regexp.MustCompile(`^[A-Za-z0-9.^-]+$`)
	upperPattern      = regexp.MustCompile(`[A-Z]`)
	digitPattern      = regexp.MustCompile(`[0-9]`)
	passwordSymbolSet = regexp.MustCompile(`[!@#\$%\^&\*\-_]`)
	nonDigitPattern   = regexp.MustCompile(`\D`)
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidatePassword enforces the password policy: minimum length, at least one
// uppercase letter, one digit, and one symbol from the fixed set !@#$%^&*-_.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrValidationFailed, MinPasswordLength)
	}
	if !upperPattern.MatchString(password) {
		return fmt.Errorf("%w: password must contain an uppercase letter", ErrValidationFailed)
	}
	if !digitPattern.MatchString(password) {
		return fmt.Errorf("%w: password must contain a digit", ErrValidationFailed)
	}
	if !passwordSymbolSet.MatchString(password) {
		return fmt.Errorf("%w: password must contain one of !@#$%%^&*-_", ErrValidationFailed)
	}
	return nil
}

// ValidateSymbol checks a ticker symbol for emptiness, length and character set.
func ValidateSymbol(symbol string) error {
	if err := ValidateStringNotEmpty(symbol, "symbol"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(symbol, MaxSymbolLength, "symbol"); err != nil {
		return err
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: symbol contains invalid characters", ErrValidationFailed)
	}
	return nil
}

// ValidateShares parses a share count submitted as a form field. Only strings
// of digits are accepted, and the result must be a positive integer.
func ValidateShares(shares string) (int64, error) {
	trimmed := strings.TrimSpace(shares)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: shares cannot be empty", ErrValidationFailed)
	}
	if nonDigitPattern.MatchString(trimmed) {
		return 0, fmt.Errorf("%w: shares must be a whole number", ErrValidationFailed)
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid share quantity", ErrValidationFailed)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: shares must be a positive integer", ErrValidationFailed)
	}
	return n, nil
}
