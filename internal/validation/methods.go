package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"

	"github.com/shopspring/decimal"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validator accumulates business-rule failures that struct tags cannot
// express.
type Validator struct {
	Errors map[string]string
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records the first error for a field.
func (v *Validator) AddError(field, message string) {
	if _, exists := v.Errors[field]; !exists {
		v.Errors[field] = message
	}
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Email validates email format
func (v *Validator) Email(field, email string) {
	v.Check(emailRegex.MatchString(email), field, "must be a valid email address")
}

// MaxLength checks if a string has at most n characters
func (v *Validator) MaxLength(field string, value string, n int) {
	v.Check(len(value) <= n, field, fmt.Sprintf("must not be more than %d characters long", n))
}

// Decimal parses value and records an error when it is not a number.
func (v *Validator) Decimal(field, value string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		v.AddError(field, "must be a decimal number")
		return decimal.Zero
	}
	return d
}

// Positive requires d > 0.
func (v *Validator) Positive(field string, d decimal.Decimal) {
	v.Check(d.IsPositive(), field, "must be greater than zero")
}

// NonNegative requires d >= 0.
func (v *Validator) NonNegative(field string, d decimal.Decimal) {
	v.Check(!d.IsNegative(), field, "must not be negative")
}

// Err returns nil when valid, otherwise a validation error listing every
// field in a stable order.
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}
	fields := make([]string, 0, len(v.Errors))
	for f := range v.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+v.Errors[f])
	}
	return apperrors.Validation("%s", strings.Join(parts, "; "))
}
