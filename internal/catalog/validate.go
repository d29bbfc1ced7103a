package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateMovie checks a single record against the catalog schema.
func ValidateMovie(m *Movie) error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: field title is blank", apperrors.ErrSchema)
	}
	if err := validate.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("field %s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", apperrors.ErrSchema, strings.Join(parts, ", "))
		}
		return fmt.Errorf("%w: %v", apperrors.ErrSchema, err)
	}
	return nil
}

// FieldErrors returns per-field messages for a record, keyed by JSON field
// name. It is empty for a valid record.
func FieldErrors(m *Movie) map[string]string {
	errs := make(map[string]string)
	if strings.TrimSpace(m.Title) == "" {
		errs["title"] = "title is required"
	}
	if err := validate.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if _, seen := errs[fe.Field()]; !seen {
					errs[fe.Field()] = fmt.Sprintf("failed %s validation", fe.Tag())
				}
			}
		}
	}
	return errs
}

// Validate checks every record and the uniqueness of ids.
func Validate(movies []Movie) error {
	seen := make(map[int64]int, len(movies))
	for i := range movies {
		if err := ValidateMovie(&movies[i]); err != nil {
			return fmt.Errorf("movie at position %d (id=%d): %w", i, movies[i].ID, err)
		}
		if first, dup := seen[movies[i].ID]; dup {
			return fmt.Errorf("movie at position %d: %w: id %d already used at position %d",
				i, apperrors.ErrSchema, movies[i].ID, first)
		}
		seen[movies[i].ID] = i
	}
	return nil
}
