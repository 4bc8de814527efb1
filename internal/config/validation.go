package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/strategy"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("policy", validatePolicy)
	_ = v.RegisterValidation("cronspec", validateCronSpec)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	}
	return false
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func validatePolicy(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	for _, known := range strategy.Names {
		if name == known {
			return true
		}
	}
	return false
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cronParser.Parse(fl.Field().String())
	return err == nil
}

// validateCrossField performs checks spanning several fields
func validateCrossField(cfg *Config) error {
	start, end, err := cfg.Backtest.Window()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("backtest start_date must not be after end_date")
	}

	if cfg.Backtest.WalkForwardStepDays > 0 && cfg.Backtest.WalkForwardDays == 0 {
		return fmt.Errorf("walk_forward_step_days requires walk_forward_days")
	}

	if _, err := features.ParseWeights(cfg.Features.Weights); err != nil {
		return fmt.Errorf("invalid feature weights: %w", err)
	}

	if cfg.IsProduction() && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	if cfg.Stats.CourseStdDev < cfg.Stats.CourseMean {
		return fmt.Errorf("stats course_std_dev cannot be below course_mean")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var msg strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if", "required_without":
			fmt.Fprintf(&msg, "- Field '%s' is required\n", field)
		case "excluded_with":
			fmt.Fprintf(&msg, "- Field '%s' cannot be combined with %s\n", field, fieldError.Param())
		case "url":
			fmt.Fprintf(&msg, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max", "gt", "gte", "lt", "lte", "gtefield":
			fmt.Fprintf(&msg, "- Field '%s' validation failed: %s=%s constraint violated\n", field, tag, fieldError.Param())
		case "environment":
			fmt.Fprintf(&msg, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&msg, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "policy":
			fmt.Fprintf(&msg, "- Field '%s' must be one of: %s, got '%v'\n", field, strings.Join(strategy.Names, ", "), value)
		case "cronspec":
			fmt.Fprintf(&msg, "- Field '%s' is not a valid cron expression: '%v'\n", field, value)
		case "datetime":
			fmt.Fprintf(&msg, "- Field '%s' must be a date formatted %s, got '%v'\n", field, DateLayout, value)
		case "oneof":
			fmt.Fprintf(&msg, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&msg, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", msg.String())
}
