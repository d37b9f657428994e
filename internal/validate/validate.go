package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

// New returns a validator that reports fields by their json names.
func New() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return validate
}

// Struct validates v and converts failures into an inErrors.ValidationError.
func Struct(validate *validator.Validate, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	fields := make([]string, 0, len(validationErrors))
	seen := map[string]bool{}
	for _, fieldErr := range validationErrors {
		if seen[fieldErr.Field()] {
			continue
		}
		seen[fieldErr.Field()] = true
		fields = append(fields, fieldErr.Field())
	}
	return inErrors.ValidationError{Fields: fields}
}
