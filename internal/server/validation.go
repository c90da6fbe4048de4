package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// validateStruct validates a struct using its validate tags.
func validateStruct(s any) error {
	return wrapValidation(validate.Struct(s))
}

// validateK checks a result count against [1, limit].
func validateK(k, limit int) error {
	err := validate.Var(k, fmt.Sprintf("gte=1,lte=%d", limit))
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &ValidationError{
			Message: "Validation failed",
			Fields:  map[string]string{"k": fmt.Sprintf("k must be between 1 and %d", limit)},
		}
	}
	return err
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string)
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "gte", "min":
			fields[field] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "lte", "max":
			fields[field] = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		default:
			fields[field] = fmt.Sprintf("%s validation failed on '%s' tag", field, fe.Tag())
		}
	}
	return &ValidationError{Message: "Validation failed", Fields: fields}
}
