package config

import "strconv"

// Environment variables understood by the stage scripts.
const (
	EnvSLOCLimit       = "LIZARD_SLOC_LIMIT"
	EnvCCNLimit        = "LIZARD_CCN_LIMIT"
	EnvCCNStrict       = "LIZARD_CCN_STRICT"
	EnvFnNLOCLimit     = "LIZARD_FN_NLOC_LIMIT"
	EnvParamLimit      = "LIZARD_PARAM_LIMIT"
	EnvChangedOnly     = "AIQ_CHANGED_ONLY"
	EnvChangedFileList = "AIQ_CHANGED_FILELIST"
	EnvFailedStages    = "FAILED_STAGES_FILE"
	EnvStagePlan       = "AIQ_STAGE_PLAN"
)

// OverrideEnv renders the numeric overrides as environment variables.
// Unset or zero thresholds produce no variable.
func (c Config) OverrideEnv() map[string]string {
	env := make(map[string]string)
	set := func(key string, v int) {
		if v > 0 {
			env[key] = strconv.Itoa(v)
		}
	}
	set(EnvSLOCLimit, sloc(c.Overrides))
	set(EnvCCNLimit, ccn(c.Overrides))
	m := strict(c.Overrides)
	set(EnvCCNStrict, m.CCNStrict)
	set(EnvFnNLOCLimit, m.FnNLOCLimit)
	set(EnvParamLimit, m.ParamLimit)
	return env
}
