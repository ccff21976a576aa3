// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	apperrors "github.com/allisson/paidleave/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// PositiveAmount validates that a string is a decimal amount greater than zero.
var PositiveAmount = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_amount_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return validation.NewError("validation_amount_format", "must be a decimal amount")
	}
	if !amount.IsPositive() {
		return validation.NewError("validation_amount_positive", "must be greater than zero")
	}
	return nil
})

// TimeZone validates that a string names a loadable IANA time zone.
var TimeZone = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := time.LoadLocation(s)
		return err == nil
	},
	validation.NewError("validation_time_zone", "must be a valid IANA time zone"),
)

// PositiveDecimal validates that a decimal.Decimal value is greater than zero.
var PositiveDecimal = validation.By(func(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return validation.NewError("validation_decimal_type", "must be a decimal")
	}
	if !amount.IsPositive() {
		return validation.NewError("validation_amount_positive", "must be greater than zero")
	}
	return nil
})

// NotNilUUID validates that a uuid.UUID is not the nil UUID. Required cannot tell, since
// the array type is never empty.
var NotNilUUID = validation.By(func(value interface{}) error {
	id, ok := value.(uuid.UUID)
	if !ok {
		return validation.NewError("validation_uuid_type", "must be a uuid")
	}
	if id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
})
