package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/swarmcoord/internal/resolve"
	"github.com/Iron-Ham/swarmcoord/internal/swarm"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "session.plan_timeout_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidReportFormats returns the list of valid report formats
func ValidReportFormats() []string {
	return []string{"text", "json"}
}

// ValidStrategies returns the list of valid resolution strategy names
func ValidStrategies() []string {
	return []string{"sequential", "partition", "merge", "section"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateResolution()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateReport()...)

	return errors
}

// validateSession validates the SessionConfig
func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.PlanTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.plan_timeout_seconds",
			Value:   c.Session.PlanTimeoutSeconds,
			Message: "must be non-negative",
		})
	}
	if c.Session.StaleClaimSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.stale_claim_seconds",
			Value:   c.Session.StaleClaimSeconds,
			Message: "must be non-negative",
		})
	}
	if c.Session.StaleCheckSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.stale_check_seconds",
			Value:   c.Session.StaleCheckSeconds,
			Message: "must be non-negative",
		})
	}
	if c.Session.Remediation != "" {
		if _, err := swarm.ParseRemediation(c.Session.Remediation); err != nil {
			errors = append(errors, ValidationError{
				Field:   "session.remediation",
				Value:   c.Session.Remediation,
				Message: "must be one of: none, retroactive_claim, revert",
			})
		}
	}

	return errors
}

// validateResolution validates the ResolutionConfig
func (c *Config) validateResolution() []ValidationError {
	var errors []ValidationError

	if c.Resolution.Default != "" {
		if _, err := resolve.ParseKind(c.Resolution.Default); err != nil {
			errors = append(errors, ValidationError{
				Field:   "resolution.default",
				Value:   c.Resolution.Default,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStrategies(), ", ")),
			})
		}
	}
	for key, choice := range c.Resolution.ByConflict {
		if _, err := resolve.ParseKind(choice.Strategy); err != nil {
			errors = append(errors, ValidationError{
				Field:   "resolution.by_conflict." + key + ".strategy",
				Value:   choice.Strategy,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStrategies(), ", ")),
			})
		}
		if choice.Strategy == string(resolve.KindSection) && len(choice.Sections) == 0 {
			errors = append(errors, ValidationError{
				Field:   "resolution.by_conflict." + key + ".sections",
				Value:   choice.Sections,
				Message: "section strategy requires a range per agent",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateReport validates the ReportConfig
func (c *Config) validateReport() []ValidationError {
	var errors []ValidationError

	if c.Report.Format != "" && !slices.Contains(ValidReportFormats(), c.Report.Format) {
		errors = append(errors, ValidationError{
			Field:   "report.format",
			Value:   c.Report.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidReportFormats(), ", ")),
		})
	}

	return errors
}
