package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/secretdrop/feed-service/feed"
)

// Validator is a struct that provides methods for struct validation using the underlying validator library.
type Validator struct {
	cli *validator.Validate
}

// ValidationError represents an error encountered during validation of a struct field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v *Validator) formatError(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "category":
		return fmt.Sprintf("must be one of %s", joinCategories())
	case "emoji":
		return fmt.Sprintf("must be one of %s", joinEmojis())
	default:
		return fe.Error()
	}
}

// ValidateStruct validates the provided struct using the underlying validator and returns a slice of validation errors.
func (v *Validator) ValidateStruct(s any) []ValidationError {
	err := v.cli.Struct(s)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks the provided value against the specified validation tags and returns a slice of validation errors.
func (v *Validator) Validate(value any, tag string) []ValidationError {
	err := v.cli.Var(value, tag)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// New initializes and returns a new instance of the Validator. Besides the
// built in tags it understands "category" and "emoji", and reports fields by
// their JSON names.
func New() *Validator {
	cli := validator.New(validator.WithRequiredStructEnabled())
	cli.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = cli.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := feed.ParseCategory(fl.Field().String())
		return err == nil
	})
	_ = cli.RegisterValidation("emoji", func(fl validator.FieldLevel) bool {
		_, err := feed.ParseEmoji(fl.Field().String())
		return err == nil
	})
	return &Validator{
		cli: cli,
	}
}

func joinCategories() string {
	names := make([]string, len(feed.Categories))
	for i, c := range feed.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func joinEmojis() string {
	names := make([]string, len(feed.Emojis))
	for i, e := range feed.Emojis {
		names[i] = string(e)
	}
	return strings.Join(names, " ")
}
