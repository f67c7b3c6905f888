package checks

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tjalve/aiq/internal/config"
	"github.com/tjalve/aiq/internal/logging"
	"github.com/tjalve/aiq/internal/stage"
)

// ExitLaunchFailure is reported when a child could not be started at all.
const ExitLaunchFailure = 127

// Mode distinguishes single-stage runs from full-plan runs.
type Mode string

const (
	// ModeSingle runs one stage script directly.
	ModeSingle Mode = "single"
	// ModePlan delegates the whole plan to the aggregate entry point.
	ModePlan Mode = "plan"
)

// Options configure one run.
type Options struct {
	stage.RunOptions
	// UpTo is forwarded to the aggregate entry point as its first argument.
	UpTo *int
	// Env overrides are merged over the engine's base environment.
	Env map[string]string
}

// Result is the structured outcome of a run.
type Result struct {
	Mode         Mode          `json:"mode"`
	Plan         []int         `json:"plan"`
	ExitCode     int           `json:"exit_code"`
	FailedStages []int         `json:"failed_stages,omitempty"`
	Duration     time.Duration `json:"duration"`
	// Spawned is false when nothing was executed (empty plan).
	Spawned bool `json:"spawned"`
}

// Passed reports whether the run succeeded.
func (r *Result) Passed() bool {
	return r.ExitCode == 0
}

// EngineConfig holds the per-invocation inputs of an Engine.
type EngineConfig struct {
	// Dir is the working directory of every child.
	Dir string
	// BaseEnv is the inherited environment; defaults to os.Environ().
	BaseEnv []string
	// TempDir holds the failed-stages file; defaults to os.TempDir().
	TempDir string
	Logger  *logging.Logger
}

// Engine executes stages strictly sequentially: at most one child runs at a
// time and the engine blocks on its exit.
type Engine struct {
	runner  CommandRunner
	dir     string
	baseEnv []string
	tempDir string
	log     *logging.Logger
}

// NewEngine creates an Engine that spawns children through runner.
func NewEngine(runner CommandRunner, cfg EngineConfig) *Engine {
	e := &Engine{
		runner:  runner,
		dir:     cfg.Dir,
		baseEnv: cfg.BaseEnv,
		tempDir: cfg.TempDir,
		log:     cfg.Logger,
	}
	if e.baseEnv == nil {
		e.baseEnv = os.Environ()
	}
	if e.log == nil {
		e.log = logging.NewNop()
	}
	return e
}

// RunSingle runs one stage. The stage's exit code becomes the result's exit
// code; a launch failure reports ExitLaunchFailure alongside the error.
func (e *Engine) RunSingle(ctx context.Context, st stage.Stage, opts Options) (*Result, error) {
	res := &Result{Mode: ModeSingle, Plan: []int{st.ID()}, Spawned: true}

	e.log.Debug(ctx, "running stage",
		zap.Int("stage", st.ID()),
		zap.String("script", st.ScriptPath()),
		zap.Strings("args", opts.Args()))

	out, err := st.Run(ctx, opts.RunOptions, MergeEnv(e.baseEnv, opts.Env))
	res.Duration = out.Duration
	if err != nil {
		res.ExitCode = ExitLaunchFailure
		res.FailedStages = []int{st.ID()}
		return res, err
	}

	res.ExitCode = out.ExitCode
	if out.ExitCode != 0 {
		res.FailedStages = []int{st.ID()}
	}
	e.log.Debug(ctx, "stage finished", zap.Int("stage", st.ID()), zap.Int("exit_code", out.ExitCode))
	return res, nil
}

// RunPlan delegates the plan to the aggregate entry point, which sequences
// the stage scripts itself and records failing stage numbers in the file
// named by FAILED_STAGES_FILE. An empty plan succeeds without spawning.
func (e *Engine) RunPlan(ctx context.Context, entryPoint string, plan []int, opts Options) (*Result, error) {
	res := &Result{Mode: ModePlan, Plan: plan}
	if len(plan) == 0 {
		e.log.Info(ctx, "empty stage plan, nothing to run")
		return res, nil
	}

	failedFile, err := os.CreateTemp(e.tempDir, "aiq-failed-stages-*.txt")
	if err != nil {
		return res, fmt.Errorf("create failed-stages file: %w", err)
	}
	failedPath := failedFile.Name()
	failedFile.Close()
	defer os.Remove(failedPath)

	var args []string
	if opts.UpTo != nil {
		args = append(args, strconv.Itoa(*opts.UpTo))
	}
	args = append(args, opts.Args()...)

	env := make(map[string]string, len(opts.Env)+2)
	for k, v := range opts.Env {
		env[k] = v
	}
	env[config.EnvFailedStages] = failedPath
	env[config.EnvStagePlan] = FormatPlan(plan)

	e.log.Debug(ctx, "running aggregate entry point",
		zap.String("entry_point", entryPoint),
		zap.Strings("args", args),
		zap.Ints("plan", plan))

	start := time.Now()
	res.Spawned = true
	code, err := e.runner.Run(ctx, Command{
		Path: entryPoint,
		Args: args,
		Env:  MergeEnv(e.baseEnv, env),
		Dir:  e.dir,
	})
	res.Duration = time.Since(start)
	if err != nil {
		res.ExitCode = ExitLaunchFailure
		return res, fmt.Errorf("run aggregate entry point: %w", err)
	}

	res.ExitCode = code
	if code != 0 {
		res.FailedStages = ReadFailedStages(failedPath)
	}
	e.log.Debug(ctx, "aggregate finished",
		zap.Int("exit_code", code),
		zap.Ints("failed_stages", res.FailedStages))
	return res, nil
}

// FormatPlan renders a plan as space-separated identifiers.
func FormatPlan(plan []int) string {
	parts := make([]string, len(plan))
	for i, id := range plan {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
