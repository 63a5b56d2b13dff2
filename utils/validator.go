package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"taskhub/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their json names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

// ValidateStruct checks s against its validate tags and returns a
// ValidationFailed error with one message per invalid field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperr.New(apperr.Internal, "could not validate request", apperr.WithCause(err))
	}

	fields := make(map[string]string, len(validationErrors))
	for _, err := range validationErrors {
		field := err.Field()
		param := err.Param()

		switch err.Tag() {
		case "required":
			fields[field] = field + " is required"
		case "min":
			fields[field] = field + " must be at least " + param + " characters"
		case "max":
			fields[field] = field + " must be at most " + param + " characters"
		case "email":
			fields[field] = field + " must be a valid email"
		case "oneof":
			fields[field] = field + " must be one of " + strings.ReplaceAll(param, " ", ", ")
		case "datetime":
			fields[field] = field + " must be a date formatted as " + param
		case "gt":
			fields[field] = field + " must be greater than " + param
		default:
			fields[field] = field + " is invalid"
		}
	}
	return apperr.Validation(fields)
}
