// Package stage defines the closed catalog of quality stages and the
// capability interface the execution engine runs them through.
package stage

import (
	"context"
	"errors"
	"regexp"
	"time"
)

const (
	// MinID and MaxID bound the canonical stage identifiers.
	MinID = 0
	MaxID = 9
)

var (
	// ErrUnknownStage is returned for identifiers outside the catalog.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrMissingScript is returned when a known stage has no script on disk.
	ErrMissingScript = errors.New("missing stage script")
)

// scripts binds each stage identifier to its script file name.
var scripts = [MaxID + 1]string{
	"0-e2e.sh",
	"1-lint.sh",
	"2-format.sh",
	"3-type_check.sh",
	"4-unit_test.sh",
	"5-sloc.sh",
	"6-complexity.sh",
	"7-maintainability.sh",
	"8-coverage.sh",
	"9-security.sh",
}

// Valid reports whether id is a member of the canonical stage set.
func Valid(id int) bool {
	return id >= MinID && id <= MaxID
}

// Canonical returns the canonical ascending stage order. The returned
// slice is a fresh copy.
func Canonical() []int {
	ids := make([]int, 0, MaxID-MinID+1)
	for id := MinID; id <= MaxID; id++ {
		ids = append(ids, id)
	}
	return ids
}

// ScriptName returns the script file name bound to id.
func ScriptName(id int) (string, bool) {
	if !Valid(id) {
		return "", false
	}
	return scripts[id], true
}

var scriptAffixes = regexp.MustCompile(`^\d+-|\.sh$`)

// NameFromScript derives a readable stage name from a script file name by
// stripping the numeric prefix and the extension ("3-type_check.sh" -> "type_check").
func NameFromScript(file string) string {
	return scriptAffixes.ReplaceAllString(file, "")
}

// Name returns the readable name of stage id, or "unknown".
func Name(id int) string {
	file, ok := ScriptName(id)
	if !ok {
		return "unknown"
	}
	return NameFromScript(file)
}

// RunOptions are forwarded to a stage as command-line flags.
type RunOptions struct {
	Verbose bool
	DryRun  bool
}

// Args renders the options as script arguments.
func (o RunOptions) Args() []string {
	var args []string
	if o.Verbose {
		args = append(args, "--verbose")
	}
	if o.DryRun {
		args = append(args, "--dry-run")
	}
	return args
}

// Outcome is what a stage run produced.
type Outcome struct {
	ExitCode int
	Duration time.Duration
}

// Stage is one runnable quality check.
type Stage interface {
	ID() int
	Name() string
	ScriptPath() string
	Run(ctx context.Context, opts RunOptions, env []string) (Outcome, error)
}
