package config

import (
	"strings"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Fatalf("default config should validate cleanly, got: %v", ValidationErrors(errs))
	}
}

func TestValidateSession(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "negative plan timeout",
			mutate:    func(c *Config) { c.Session.PlanTimeoutSeconds = -1 },
			wantField: "session.plan_timeout_seconds",
		},
		{
			name:      "negative stale threshold",
			mutate:    func(c *Config) { c.Session.StaleClaimSeconds = -5 },
			wantField: "session.stale_claim_seconds",
		},
		{
			name:      "negative stale interval",
			mutate:    func(c *Config) { c.Session.StaleCheckSeconds = -5 },
			wantField: "session.stale_check_seconds",
		},
		{
			name:      "unknown remediation",
			mutate:    func(c *Config) { c.Session.Remediation = "rollback" },
			wantField: "session.remediation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if !hasField(errs, tt.wantField) {
				t.Errorf("expected error on %s, got: %v", tt.wantField, errs)
			}
		})
	}
}

func TestValidateResolution(t *testing.T) {
	cfg := Default()
	cfg.Resolution.Default = "vote"
	if errs := cfg.Validate(); !hasField(errs, "resolution.default") {
		t.Errorf("unknown default strategy should fail, got: %v", errs)
	}

	cfg = Default()
	cfg.Resolution.ByConflict = map[string]StrategyChoice{
		"a.go": {Strategy: "consensus"},
	}
	if errs := cfg.Validate(); !hasField(errs, "resolution.by_conflict.a.go.strategy") {
		t.Errorf("unknown per-conflict strategy should fail, got: %v", errs)
	}

	cfg = Default()
	cfg.Resolution.ByConflict = map[string]StrategyChoice{
		"a.go": {Strategy: "section"},
	}
	if errs := cfg.Validate(); !hasField(errs, "resolution.by_conflict.a.go.sections") {
		t.Errorf("section strategy without ranges should fail, got: %v", errs)
	}

	cfg = Default()
	cfg.Resolution.ByConflict = map[string]StrategyChoice{
		"a.go": {Strategy: "section", Sections: map[string]string{"x": "1-10", "y": "11-20"}},
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("valid section choice should pass, got: %v", errs)
	}
}

func TestValidateLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	if errs := cfg.Validate(); !hasField(errs, "logging.level") {
		t.Errorf("invalid log level should fail, got: %v", errs)
	}

	cfg = Default()
	cfg.Logging.MaxSizeMB = -1
	if errs := cfg.Validate(); !hasField(errs, "logging.max_size_mb") {
		t.Errorf("negative max size should fail, got: %v", errs)
	}
}

func TestValidateReport(t *testing.T) {
	cfg := Default()
	cfg.Report.Format = "xml"
	if errs := cfg.Validate(); !hasField(errs, "report.format") {
		t.Errorf("invalid report format should fail, got: %v", errs)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "a: bad (got: 1)") {
		t.Errorf("message = %q", msg)
	}

	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if strings.Contains(single.Error(), "validation errors") {
		t.Errorf("single error should not use the plural form: %q", single.Error())
	}
}

func hasField(errs []ValidationError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}
