package validator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator"

	"eventhub/internal/shop"
)

var (
	global     *validator.Validate
	phoneRegex = regexp.MustCompile(`^(\+98|0098|0)?9\d{9}$`)
	slugRegex  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	colorRegex = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrFieldMismatch      = "Fields do not match"
	ErrUnknownValidation  = "Unknown validation error"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("future", validateFutureDate)
	_ = v.RegisterValidation("positive", validatePositive)
	_ = v.RegisterValidation("phone", validatePhone)
	_ = v.RegisterValidation("itemtype", validateItemType)
	_ = v.RegisterValidation("slug", validateSlug)
	_ = v.RegisterValidation("hexcolor", validateHexColor)
	return v
}

// SetValidator swaps the package-level instance used by Validate.
func SetValidator(v *validator.Validate) { global = v }

func Validator() *validator.Validate { return global }

func validateFutureDate(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	return ok && t.After(time.Now())
}

func validatePositive(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case int:
		return v > 0
	case int64:
		return v > 0
	}
	return false
}

// validatePhone accepts Iranian mobile numbers. Empty values are left to "required".
func validatePhone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || phoneRegex.MatchString(s)
}

func validateItemType(fl validator.FieldLevel) bool {
	return shop.ValidItemType(fl.Field().String())
}

func validateSlug(fl validator.FieldLevel) bool {
	return slugRegex.MatchString(fl.Field().String())
}

func validateHexColor(fl validator.FieldLevel) bool {
	return colorRegex.MatchString(fl.Field().String())
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

var tagMessages = map[string]string{
	"email":    ErrInvalidFormat,
	"url":      ErrInvalidFormat,
	"uuid4":    ErrInvalidFormat,
	"oneof":    ErrInvalidFormat,
	"numeric":  ErrInvalidFormat,
	"phone":    ErrInvalidFormat,
	"itemtype": ErrInvalidFormat,
	"slug":     ErrInvalidFormat,
	"hexcolor": ErrInvalidFormat,
	"required": ErrFieldRequired,
	"max":      ErrFieldExceedsMaxLen,
	"min":      ErrFieldBelowMinLen,
	"lt":       ErrFieldExceedsMaxVal,
	"lte":      ErrFieldExceedsMaxVal,
	"gt":       ErrFieldBelowMinVal,
	"gte":      ErrFieldBelowMinVal,
	"eqfield":  ErrFieldMismatch,
	"future":   "Date must be in the future",
	"positive": "Value must be positive",
}

// parseValidationErrors reports only the first failing field.
func parseValidationErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return nil
	}
	first := fieldErrs[0]
	msg, known := tagMessages[first.Tag()]
	if !known {
		msg = ErrUnknownValidation
	}
	return fmt.Errorf("%s: %s", msg, first.Namespace())
}
