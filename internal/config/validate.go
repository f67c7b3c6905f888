package config

import (
	"fmt"

	"github.com/tjalve/aiq/internal/stage"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Config for structural errors. It returns all issues
// found (empty if valid). Invalid entries are tolerated at run time; this is
// for reporting only.
func Validate(cfg Config) []ValidationError {
	var errs []ValidationError

	seen := make(map[int]bool)
	for i, id := range cfg.Stages.Order {
		field := fmt.Sprintf("stages.order[%d]", i)
		if !stage.Valid(id) {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("unknown stage %d", id)})
			continue
		}
		if seen[id] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate stage %d", id)})
		}
		seen[id] = true
	}

	for i, id := range cfg.Stages.Disabled {
		if !stage.Valid(id) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("stages.disabled[%d]", i),
				Message: fmt.Sprintf("unknown stage %d", id),
			})
		}
	}

	for _, lim := range []struct {
		field string
		value int
	}{
		{"overrides.5.sloc_limit", sloc(cfg.Overrides)},
		{"overrides.6.ccn_limit", ccn(cfg.Overrides)},
		{"overrides.7.ccn_strict", strict(cfg.Overrides).CCNStrict},
		{"overrides.7.fn_nloc_limit", strict(cfg.Overrides).FnNLOCLimit},
		{"overrides.7.param_limit", strict(cfg.Overrides).ParamLimit},
	} {
		if lim.value < 0 {
			errs = append(errs, ValidationError{Field: lim.field, Message: "must be positive"})
		}
	}

	for i, pattern := range cfg.Excludes {
		if pattern == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("excludes[%d]", i),
				Message: "is empty",
			})
		}
	}

	return errs
}

func sloc(o Overrides) int {
	if o.SLOC == nil {
		return 0
	}
	return o.SLOC.SLOCLimit
}

func ccn(o Overrides) int {
	if o.Complexity == nil {
		return 0
	}
	return o.Complexity.CCNLimit
}

func strict(o Overrides) MaintainabilityOverride {
	if o.Maintainability == nil {
		return MaintainabilityOverride{}
	}
	return *o.Maintainability
}
