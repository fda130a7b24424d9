// Package validation holds the field validators shared by the service layer.
// Validators return a descriptive error for the first problem found; they
// never log and never touch the database.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Reference numbers are upper-case alphanumerics with dashes, e.g.
// POL-2026-0001 or CLM-2026-0001.
var referenceNumberRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,63}$`)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxAmountCents caps monetary fields at one billion currency units.
const maxAmountCents = 100_000_000_000

// ValidateReferenceNumber checks a policy or claim number.
func ValidateReferenceNumber(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !referenceNumberRegex.MatchString(value) {
		return fmt.Errorf("%s must be 3-64 upper-case letters, digits, or dashes", field)
	}
	return nil
}

// ValidateAmountCents checks a monetary amount in cents.
func ValidateAmountCents(field string, cents int64) error {
	if cents < 0 {
		return fmt.Errorf("%s must not be negative", field)
	}
	if cents > maxAmountCents {
		return fmt.Errorf("%s exceeds the maximum allowed amount", field)
	}
	return nil
}

// ValidateDate checks an ISO date (YYYY-MM-DD).
func ValidateDate(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return fmt.Errorf("%s must be a date in YYYY-MM-DD format", field)
	}
	return nil
}

// ValidateDateNotFuture checks an ISO date that must not lie in the future,
// such as a claim's incident date.
func ValidateDateNotFuture(field, value string, now time.Time) error {
	if err := ValidateDate(field, value); err != nil {
		return err
	}
	d, _ := time.Parse("2006-01-02", value)
	if d.After(now) {
		return fmt.Errorf("%s must not be in the future", field)
	}
	return nil
}

// ValidateDateRange checks that end does not precede start. end may be empty.
func ValidateDateRange(startField, start, endField, end string) error {
	if err := ValidateDate(startField, start); err != nil {
		return err
	}
	if end == "" {
		return nil
	}
	if err := ValidateDate(endField, end); err != nil {
		return err
	}
	s, _ := time.Parse("2006-01-02", start)
	e, _ := time.Parse("2006-01-02", end)
	if e.Before(s) {
		return fmt.Errorf("%s must not precede %s", endField, startField)
	}
	return nil
}

// ValidateEmail checks an email address.
func ValidateEmail(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(value) > 254 || !emailRegex.MatchString(value) {
		return fmt.Errorf("%s is not a valid email address", field)
	}
	return nil
}

// ValidateName checks a display name field.
func ValidateName(field, value string, maxLen int) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(trimmed) > maxLen {
		return fmt.Errorf("%s must be at most %d characters", field, maxLen)
	}
	return nil
}
