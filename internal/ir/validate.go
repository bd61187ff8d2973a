package ir

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes one failed structural rule.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validation error codes.
const (
	CodeRequired   = "V001"
	CodeNegative   = "V002"
	CodeTooLong    = "V003"
	CodeBadHandle  = "V004"
	CodeBadColor   = "V005"
	CodeMinOverMax = "V006"
	CodeInvalid    = "V099"
)

var handlePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("color", func(fl validator.FieldLevel) bool {
		return Color(fl.Field().String()).Valid()
	})
}

// ValidateBlockType checks a block type's structural rules and returns every
// failure (it does not stop at the first one).
func ValidateBlockType(bt *BlockType) []ValidationError {
	errs := structErrors(validate.Struct(bt))

	bounds := []struct {
		field    string
		min, max int
	}{
		{"MinBlocks", bt.MinBlocks, bt.MaxBlocks},
		{"MinSiblingBlocks", bt.MinSiblingBlocks, bt.MaxSiblingBlocks},
		{"MinChildBlocks", bt.MinChildBlocks, bt.MaxChildBlocks},
	}
	for _, b := range bounds {
		// A max of 0 means unlimited.
		if b.max > 0 && b.min > b.max {
			errs = append(errs, ValidationError{
				Field:   b.field,
				Message: fmt.Sprintf("minimum %d exceeds maximum %d", b.min, b.max),
				Code:    CodeMinOverMax,
			})
		}
	}
	return errs
}

// ValidateGroup checks a block type group's structural rules.
func ValidateGroup(g *BlockTypeGroup) []ValidationError {
	return structErrors(validate.Struct(g))
}

func structErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Field: "", Message: err.Error(), Code: CodeInvalid}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, toValidationError(fe))
	}
	return out
}

func toValidationError(fe validator.FieldError) ValidationError {
	ve := ValidationError{Field: fe.Field()}
	switch fe.Tag() {
	case "required":
		ve.Code, ve.Message = CodeRequired, "is required"
	case "gte", "gt":
		ve.Code, ve.Message = CodeNegative, fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	case "max":
		ve.Code, ve.Message = CodeTooLong, fmt.Sprintf("must be at most %s characters", fe.Param())
	case "handle":
		ve.Code, ve.Message = CodeBadHandle, "must start with a letter and contain only letters, numbers and underscores"
	case "color":
		ve.Code, ve.Message = CodeBadColor, fmt.Sprintf("unknown color %q", fe.Value())
	default:
		ve.Code, ve.Message = CodeInvalid, fmt.Sprintf("failed %q rule", fe.Tag())
	}
	return ve
}
