package core

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"fieldscout/internal/types"
)

// Validator wraps go-playground/validator and translates validation failures
// into the structured AppError shape handlers return to clients.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with JSON tag names used in error details,
// so clients see the field names they actually sent.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates a request DTO. On failure it returns a
// *types.AppError with code validation_missing_required_field and a details
// map of field -> violated rule, covering every failing field.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		details[fe.Field()] = describeRule(fe)
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request validation failed",
		err,
		details,
	)
}

// describeRule renders one field error as a short client-facing message.
func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s items or characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "latitude", "longitude":
		return fmt.Sprintf("must be a valid %s", fe.Tag())
	default:
		return fmt.Sprintf("failed rule %q", fe.Tag())
	}
}
