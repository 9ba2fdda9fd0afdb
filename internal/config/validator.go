package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers mcpaudit-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("weights_sum_one", validateWeightsSumOne); err != nil {
		return fmt.Errorf("failed to register weights_sum_one validator: %w", err)
	}
	return nil
}

// validateWeightsSumOne validates that the five cognitive-load sub-score
// weights sum to 1.0, within 1e-9, satisfying spec.md's weight-identity
// testable property.
func validateWeightsSumOne(fl validator.FieldLevel) bool {
	w, ok := fl.Field().Interface().(WeightsConfig)
	if !ok {
		return false
	}
	sum := w.PromptComplexity + w.ContextSwitching + w.RetryFrustration +
		w.ConfigurationFriction + w.IntegrationCognition
	return math.Abs(sum-1.0) <= 1e-9
}

// Validate validates the Config using struct tags and custom cross-field
// rules. Returns an error if validation fails, with actionable error
// messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "weights_sum_one":
		return fmt.Sprintf("%s must sum to 1.0 (within 1e-9)", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
