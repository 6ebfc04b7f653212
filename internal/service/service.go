package service

import (
	"errors"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"retail-order-service/internal/apperror"
	"retail-order-service/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs the struct tag rules on in and converts violations into a
// validation error listing one detail per field.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Internal(err)
	}
	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fieldMessage(fe))
	}
	return apperror.Validation("Validation failed", details...)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "oneof":
		return field + " must be one of [" + fe.Param() + "]"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "gte":
		return field + " must be at least " + fe.Param()
	case "min":
		return field + " must have at least " + fe.Param() + unit(fe.Kind())
	case "max":
		return field + " must have at most " + fe.Param() + unit(fe.Kind())
	}
	return field + " is invalid"
}

func unit(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " item(s)"
	}
	return ""
}

// internalErr passes typed errors through and wraps everything else as internal.
func internalErr(err error, msg string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	logger.Error().Err(err).Msg(msg)
	return apperror.Internal(err)
}

func notFoundOr(err error, resource string, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(resource, id)
	}
	return internalErr(err, "Error loading "+strings.ToLower(resource))
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
