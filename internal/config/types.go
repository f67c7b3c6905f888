package config

// Config is the static project configuration persisted in
// .aiq/quality.config.json.
type Config struct {
	Stages    StageSettings       `json:"stages" yaml:"stages"`
	Overrides Overrides           `json:"overrides" yaml:"overrides"`
	Languages map[string]Language `json:"languages,omitempty" yaml:"languages,omitempty"`
	Excludes  []string            `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	CI        CI                  `json:"ci" yaml:"ci"`
	Diff      Diff                `json:"diff,omitzero" yaml:"diff,omitempty"`
	Runner    Runner              `json:"runner,omitzero" yaml:"runner,omitempty"`
}

// StageSettings holds the configured stage order and disabled set. A nil
// Order means "not configured" and is distinct from an explicit empty list.
type StageSettings struct {
	Order    []int `json:"order" yaml:"order"`
	Disabled []int `json:"disabled" yaml:"disabled"`
}

// Overrides carries per-stage numeric thresholds. Only stages 5, 6 and 7
// take overrides.
type Overrides struct {
	SLOC            *SLOCOverride            `json:"5,omitempty" yaml:"5,omitempty"`
	Complexity      *ComplexityOverride      `json:"6,omitempty" yaml:"6,omitempty"`
	Maintainability *MaintainabilityOverride `json:"7,omitempty" yaml:"7,omitempty"`
}

// SLOCOverride tunes stage 5.
type SLOCOverride struct {
	SLOCLimit int `json:"sloc_limit,omitempty" yaml:"sloc_limit,omitempty"`
}

// ComplexityOverride tunes stage 6.
type ComplexityOverride struct {
	CCNLimit int `json:"ccn_limit,omitempty" yaml:"ccn_limit,omitempty"`
}

// MaintainabilityOverride tunes stage 7.
type MaintainabilityOverride struct {
	CCNStrict   int `json:"ccn_strict,omitempty" yaml:"ccn_strict,omitempty"`
	FnNLOCLimit int `json:"fn_nloc_limit,omitempty" yaml:"fn_nloc_limit,omitempty"`
	ParamLimit  int `json:"param_limit,omitempty" yaml:"param_limit,omitempty"`
}

// Language is a per-language enablement flag.
type Language struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// CI holds CI-integration toggles.
type CI struct {
	GitHubActions Toggle `json:"github_actions" yaml:"github_actions"`
}

// Toggle is a generic enabled flag.
type Toggle struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Diff configures change scoping.
type Diff struct {
	// Base is the reference changed files are computed against.
	Base string `json:"base,omitempty" yaml:"base,omitempty"`
}

// Runner configures how stage scripts are launched.
type Runner struct {
	// Interpreter is a shell-style command prefix, e.g. "bash -e".
	Interpreter string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`
}

// Progress is the mutable progress record persisted in .aiq/progress.json.
type Progress struct {
	CurrentStage int      `json:"current_stage" yaml:"current_stage"`
	Disabled     []int    `json:"disabled" yaml:"disabled"`
	Order        []int    `json:"order" yaml:"order"`
	LastRun      *LastRun `json:"last_run" yaml:"last_run"`
}

// LastRun summarises the most recent run that spawned a child process.
type LastRun struct {
	ID           string `json:"id" yaml:"id"`
	Mode         string `json:"mode" yaml:"mode"`
	Plan         []int  `json:"plan" yaml:"plan"`
	ExitCode     int    `json:"exit_code" yaml:"exit_code"`
	FailedStages []int  `json:"failed_stages,omitempty" yaml:"failed_stages,omitempty"`
	StartedAt    string `json:"started_at" yaml:"started_at"`
	FinishedAt   string `json:"finished_at" yaml:"finished_at"`
}
