package config

import "github.com/tjalve/aiq/internal/stage"

// DefaultCurrentStage is the gate stage a fresh project starts on.
const DefaultCurrentStage = 1

// DefaultConfig returns the configuration written by `aiq config` on first use.
func DefaultConfig() Config {
	return Config{
		Stages: StageSettings{
			Order:    stage.Canonical(),
			Disabled: []int{},
		},
		Overrides: Overrides{
			SLOC:       &SLOCOverride{SLOCLimit: 350},
			Complexity: &ComplexityOverride{CCNLimit: 12},
			Maintainability: &MaintainabilityOverride{
				CCNStrict:   10,
				FnNLOCLimit: 200,
				ParamLimit:  6,
			},
		},
		Languages: map[string]Language{
			"python":     {Enabled: true},
			"javascript": {Enabled: true},
			"dotnet":     {Enabled: true},
			"java":       {Enabled: true},
			"go":         {Enabled: true},
		},
		Excludes: []string{
			"*/.git/*",
			"*/node_modules/*",
			"*/.venv/*",
			"*/dist/*",
			"*/build/*",
			"*/target/*",
			"*/bin/*",
			"*/obj/*",
			"*/__pycache__/*",
		},
		CI: CI{GitHubActions: Toggle{Enabled: true}},
	}
}

// DefaultProgress returns the progress record written alongside the default config.
func DefaultProgress() Progress {
	return Progress{
		CurrentStage: DefaultCurrentStage,
		Disabled:     []int{},
		Order:        stage.Canonical(),
	}
}
