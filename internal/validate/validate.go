// Package validate holds the stateless input checks shared by the use cases.
// All checks run before any store access and report *domain.ValidationError.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/neomorfeo/sessiongate/internal/domain"
)

// DateLayout is the accepted calendar date format.
const DateLayout = "2006-01-02"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	once     sync.Once
	instance *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		instance = v
	})
	return instance
}

// ID checks that value is a canonical UUID.
func ID(field, value string) error {
	return check(field, value, "required,uuid")
}

// Slug checks a public tenant slug.
func Slug(field, value string) error {
	return check(field, value, "required,max=100,slug")
}

// Date checks a YYYY-MM-DD calendar date.
func Date(field, value string) error {
	return check(field, value, "required,datetime="+DateLayout)
}

// OneOf checks that value is one of allowed.
func OneOf[T ~string](field string, value T, allowed []T) error {
	opts := make([]string, len(allowed))
	for i, a := range allowed {
		opts[i] = string(a)
	}
	return check(field, string(value), "required,oneof="+strings.Join(opts, " "))
}

// Text checks a non-blank string of at most max characters.
func Text(field, value string, max int) error {
	return check(field, value, fmt.Sprintf("notblank,max=%d", max))
}

// IntRange checks min <= value <= max.
func IntRange(field string, value, min, max int) error {
	return check(field, value, fmt.Sprintf("gte=%d,lte=%d", min, max))
}

// NonNegative checks value >= 0.
func NonNegative(field string, value int) error {
	return check(field, value, "gte=0")
}

func check(field string, value any, tag string) error {
	err := engine().Var(value, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &domain.ValidationError{Field: field, Reason: describe(verrs[0])}
	}
	return &domain.ValidationError{Field: field, Reason: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "uuid":
		return "must be a valid identifier"
	case "slug":
		return "must be lowercase letters, digits and single hyphens"
	case "datetime":
		return "must be a date formatted as " + DateLayout
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
