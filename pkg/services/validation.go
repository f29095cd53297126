package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/boreallogic/delphi-app/pkg/apperrors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct tag validation and reports the first failure
// as an *apperrors.ValidationError.
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return toValidationError(err)
	}
	return nil
}

// validateScore checks an ordinal score against the configured scale.
// A nil score means "unsure" and is always accepted.
func validateScore(field string, score *int, min, max int) error {
	if score == nil {
		return nil
	}
	if err := validate.Var(*score, fmt.Sprintf("gte=%d,lte=%d", min, max)); err != nil {
		return &apperrors.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %d and %d or null, got %d", min, max, *score),
		}
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &apperrors.ValidationError{Message: err.Error()}
	}

	fe := verrs[0]
	return &apperrors.ValidationError{
		Field:   fieldPath(fe.Namespace()),
		Message: describe(fe),
	}
}

// fieldPath drops the top-level struct name: "CreateStudyInput.Items[0].Name" -> "Items[0].Name".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid e-mail address"
	case "unique":
		return fmt.Sprintf("must not repeat %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
