package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNilManifest is the panic value of Validate when given a nil manifest.
var ErrNilManifest = errors.New("plugins: manifest must not be nil")

// Violation is one violated manifest constraint.
type Violation struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ManifestValidator checks manifests against the constraints declared on
// the Manifest struct tags.
type ManifestValidator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewManifestValidator creates a validator reporting violations to logger
func NewManifestValidator(logger *slog.Logger) *ManifestValidator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire name rather than the Go field name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &ManifestValidator{
		validate: v,
		logger:   logger.With("component", "manifest_validator"),
	}
}

// Validate logs one error per violated constraint and reports whether the
// manifest conforms. A nil manifest is a caller bug and panics.
func (v *ManifestValidator) Validate(manifest *Manifest) bool {
	if manifest == nil {
		panic(ErrNilManifest)
	}

	violations := v.Check(manifest)
	for _, violation := range violations {
		v.logger.Error(violation.Message,
			"manifest", manifest.Identity.ID,
			"field", violation.Field,
			"constraint", violation.Tag,
		)
	}
	return len(violations) == 0
}

// Check returns every violated constraint without logging.
func (v *ManifestValidator) Check(manifest *Manifest) []Violation {
	if manifest == nil {
		panic(ErrNilManifest)
	}

	err := v.validate.Struct(manifest)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError only happens for non-struct input
		return []Violation{{Field: "_manifest", Tag: "invalid", Message: err.Error()}}
	}

	violations := make([]Violation, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		field := fieldPath(e)
		violations = append(violations, Violation{
			Field:   field,
			Tag:     e.Tag(),
			Message: formatValidationMessage(field, e),
		})
	}
	return violations
}

// fieldPath strips the root struct name from the error namespace
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// formatValidationMessage creates human-readable error messages
func formatValidationMessage(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "semver":
		return fmt.Sprintf("%s must be a semantic version, got %q", field, e.Value())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
