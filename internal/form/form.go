// Package form parses submitted form values into typed values.
package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError describes a form field that could not be parsed.
type ValidationError struct {
	Field   string
	Message string
}

func (err *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", err.Field, err.Message)
}

func invalid(field string, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// Symbol normalises and validates a ticker symbol.
func Symbol(field string, value string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(value))

	if symbol == "" {
		return "", invalid(field, "missing symbol")
	}

	if !symbolPattern.MatchString(symbol) {
		return "", invalid(field, "invalid symbol")
	}

	return symbol, nil
}

// MaxWholeNumber is the largest number PositiveInt accepts. Larger amounts
// could overflow the numeric columns cash is stored in.
const MaxWholeNumber = 1_000_000_000_000

// PositiveInt parses a whole number from 1 to MaxWholeNumber.
func PositiveInt(field string, value string) (int64, error) {
	value = strings.TrimSpace(value)

	if value == "" {
		return 0, invalid(field, "missing value")
	}

	number, err := strconv.ParseInt(value, 10, 64)

	if err != nil {
		return 0, invalid(field, "must be a whole number")
	}

	if number < 1 {
		return 0, invalid(field, "must be positive")
	}

	if number > MaxWholeNumber {
		return 0, invalid(field, "too large")
	}

	return number, nil
}

// Required returns the value unless it is empty.
//
// Whitespace is not trimmed, so passwords are kept intact.
func Required(field string, value string) (string, error) {
	if value == "" {
		return "", invalid(field, "must provide "+field)
	}

	return value, nil
}
