// Package validator wraps go-playground/validator with the rules used by the
// API request models.
package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
)

var currencyRegex = regexp.MustCompile(`^[a-zA-Z]{3}$`)

// ValidationError represents an individual validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a slice of ValidationError.
type ValidationErrors []ValidationError

// Error returns a string representation of the validation errors.
func (ve ValidationErrors) Error() string {
	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return sb.String()
}

// Validator is a wrapper around the go-playground/validator package.
type Validator struct {
	validator *validator.Validate
}

// New creates a new Validator instance with the custom rules registered:
// phone, evmaddr, txhash, tokenamount and currency.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	_ = v.RegisterValidation("phone", optional(func(s string) bool {
		_, err := internal.SanitizeAndVerifyPhoneNumber(s)
		return err == nil
	}))
	_ = v.RegisterValidation("evmaddr", optional(func(s string) bool {
		_, err := internal.ParseAddress(s)
		return err == nil
	}))
	_ = v.RegisterValidation("txhash", optional(func(s string) bool {
		_, err := internal.ParseTxHash(s)
		return err == nil
	}))
	_ = v.RegisterValidation("tokenamount", optional(func(s string) bool {
		d, err := internal.ParseTokenAmount(s)
		return err == nil && d.IsPositive()
	}))
	_ = v.RegisterValidation("currency", optional(currencyRegex.MatchString))

	return &Validator{validator: v}
}

// Validate validates a struct using the validator package.
func (v *Validator) Validate(s any) error {
	return v.validator.Struct(s)
}

// Check validates s and returns the failures as ValidationErrors, or nil when
// s is valid. Errors that are not field failures are returned as they are.
func (v *Validator) Check(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fieldErr.Field(),
			Message: getErrorMessage(fieldErr),
		})
	}
	return out
}

// jsonFieldName reports fields by their JSON name.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// optional adapts a string predicate to a field validation that accepts empty
// values, leaving presence to the required tag.
func optional(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		return valid(s)
	}
}

// getErrorMessage returns a human-readable error message for a validation error.
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min", "gte":
		return fmt.Sprintf("Must be at least %s", err.Param())
	case "max", "lte":
		return fmt.Sprintf("Must be at most %s", err.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", err.Param())
	case "url":
		return "Invalid URL format"
	case "uuid":
		return "Invalid identifier"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", err.Param())
	case "phone":
		return "Invalid phone number format"
	case "evmaddr":
		return "Invalid wallet address"
	case "txhash":
		return "Invalid transaction hash (0x followed by 64 hex characters)"
	case "tokenamount":
		return "Invalid token amount, must be a positive decimal"
	case "currency":
		return "Invalid currency, must be a 3 letter ISO code"
	default:
		return fmt.Sprintf("Invalid value: %s", err.Tag())
	}
}
