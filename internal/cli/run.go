package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tjalve/aiq/internal/assets"
	"github.com/tjalve/aiq/internal/changeset"
	"github.com/tjalve/aiq/internal/checks"
	"github.com/tjalve/aiq/internal/config"
	"github.com/tjalve/aiq/internal/history"
	"github.com/tjalve/aiq/internal/logging"
	"github.com/tjalve/aiq/internal/plan"
	"github.com/tjalve/aiq/internal/report"
)

// ExitUsage is the exit code for an unknown or missing stage and for
// unavailable assets.
const ExitUsage = 2

type runFlags struct {
	only     int
	from     int
	upTo     int
	verbose  bool
	dryRun   bool
	diffOnly bool
	disable  []int
}

func addRunFlags(cmd *cobra.Command, rf *runFlags) {
	f := cmd.Flags()
	f.IntVar(&rf.only, "only", 0, "run only stage N")
	f.IntVar(&rf.from, "from", 0, "skip stages below N")
	f.IntVar(&rf.upTo, "up-to", 0, "skip stages above N")
	f.BoolVarP(&rf.verbose, "verbose", "v", false, "pass --verbose to stage scripts")
	f.BoolVar(&rf.dryRun, "dry-run", false, "pass --dry-run to stage scripts")
	f.BoolVar(&rf.diffOnly, "diff-only", false, "scope stages to files changed since the merge-base with the base branch")
	f.BoolVar(&rf.diffOnly, "changed-only", false, "alias for --diff-only")
	f.IntSliceVar(&rf.disable, "disable", nil, "skip stage N for this run (repeatable)")
}

// planOptions converts the flags that were actually set into plan options.
func planOptions(cmd *cobra.Command, rf *runFlags) plan.Options {
	var opts plan.Options
	set := func(name string, v int) *int {
		if cmd.Flags().Changed(name) {
			return &v
		}
		return nil
	}
	opts.Only = set("only", rf.only)
	opts.From = set("from", rf.from)
	opts.UpTo = set("up-to", rf.upTo)
	opts.Disable = rf.disable
	return opts
}

func newRunCmd(d Deps, g *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the quality stages",
		Long: `Run the configured stage plan through the aggregate entry point, or a
single stage with --only. The exit code is the stage's or aggregate's exit
code, or 2 when the stage is unknown or no quality assets are available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, d, g, rf)
		},
	}
	addRunFlags(cmd, rf)
	return cmd
}

func runCommand(cmd *cobra.Command, d Deps, g *globalFlags, rf *runFlags) error {
	inv, err := g.open(d, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer inv.close()

	code := runQuality(contextOf(cmd), d, inv, planOptions(cmd, rf), rf, cmd.ErrOrStderr())
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// runQuality performs one run and returns the process exit code.
func runQuality(ctx context.Context, d Deps, inv *invocation, popts plan.Options, rf *runFlags, stderr io.Writer) int {
	rep := report.New(stderr)
	log := inv.log
	cfg := inv.store.LoadConfig()
	prog := inv.store.LoadProgress()

	runner, err := buildRunner(d, cfg, rep)
	if err != nil {
		rep.Errorf("%v", err)
		return ExitUsage
	}

	loc, err := resolveAssets(ctx, d, inv)
	if err != nil {
		rep.Errorf("%v", err)
		return ExitUsage
	}
	log.Debug(ctx, "quality assets resolved",
		zap.String("source", loc.Source.String()),
		zap.String("root", loc.Root))
	if loc.Source == assets.SourceLocal {
		rep.Infof("Using local quality directory (no packaged assets found)")
	}

	var single *checks.ScriptStage
	if popts.Only != nil {
		single, err = checks.LookupStage(*popts.Only, loc.StagesDir, inv.ws.Dir, runner)
		if err != nil {
			log.Debug(ctx, "stage lookup failed", zap.Error(err))
			rep.UnknownStage(*popts.Only)
			return ExitUsage
		}
	}

	stages := plan.Compute(cfg, prog, popts)
	if len(stages) == 0 {
		if single != nil {
			rep.Infof("Stage %d is excluded by the current configuration; nothing to run.", single.ID())
		} else {
			rep.Infof("No stages to run.")
		}
		return 0
	}

	env := cfg.OverrideEnv()
	if rf.diffOnly {
		listPath := collectChanges(ctx, d, inv, cfg)
		if listPath != "" {
			defer os.Remove(listPath)
			env[config.EnvChangedOnly] = "1"
			env[config.EnvChangedFileList] = listPath
		}
	}

	environ := d.Environ
	if environ == nil {
		environ = os.Environ
	}
	engine := checks.NewEngine(runner, checks.EngineConfig{
		Dir:     inv.ws.Dir,
		BaseEnv: environ(),
		TempDir: d.TempDir,
		Logger:  log,
	})

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	opts := checks.Options{Env: env}
	opts.Verbose = rf.verbose
	opts.DryRun = rf.dryRun
	opts.UpTo = popts.UpTo

	now := d.Now
	if now == nil {
		now = time.Now
	}
	started := now()

	var res *checks.Result
	if single != nil {
		res, err = engine.RunSingle(ctx, single, opts)
	} else {
		res, err = engine.RunPlan(ctx, loc.EntryPoint, stages, opts)
	}
	if err != nil {
		rep.Errorf("%v", err)
	}
	if res == nil {
		return checks.ExitLaunchFailure
	}

	if !res.Passed() {
		if res.Mode == checks.ModeSingle {
			rep.StageFailed(single.ID())
		} else {
			rep.FailedStages(res.FailedStages)
		}
	}

	if res.Spawned {
		recordRun(ctx, inv, runID, res, rf.diffOnly, started, now())
	}
	return res.ExitCode
}

func buildRunner(d Deps, cfg config.Config, rep *report.Reporter) (checks.CommandRunner, error) {
	if d.Runner != nil {
		return d.Runner, nil
	}
	var interp []string
	if cfg.Runner.Interpreter != "" {
		args, err := shellwords.Parse(cfg.Runner.Interpreter)
		if err != nil {
			return nil, fmt.Errorf("parse runner.interpreter %q: %w", cfg.Runner.Interpreter, err)
		}
		interp = args
	}
	if len(interp) == 0 && d.GOOS == "windows" {
		rep.Warnf("Windows detected: the quality scripts require Bash (Git Bash or WSL). Set runner.interpreter in .aiq/quality.config.json if bash is not on PATH.")
		interp = []string{"bash"}
	}
	return &checks.ExecRunner{Interpreter: interp}, nil
}

func resolveAssets(ctx context.Context, d Deps, inv *invocation) (*assets.Location, error) {
	cacheRoot, err := assets.DefaultCacheRoot(inv.settings.CacheDir)
	if err != nil {
		return nil, err
	}
	r := &assets.Resolver{
		Packaged:  d.Packaged,
		Version:   version,
		CacheRoot: cacheRoot,
		LocalDir:  inv.ws.QualityDir(),
		DevMode:   inv.settings.DevMode,
		Logger:    inv.log.Named("assets"),
	}
	return r.Resolve(ctx)
}

// collectChanges writes the change set to a temp file and returns its path,
// or "" when scoping is unavailable or nothing changed.
func collectChanges(ctx context.Context, d Deps, inv *invocation, cfg config.Config) string {
	c := &changeset.Collector{
		Resolver: d.Changes,
		Base:     cfg.Diff.Base,
		Excludes: cfg.Excludes,
		Logger:   inv.log.Named("changeset"),
	}
	files := c.Collect(ctx, inv.ws.Dir)
	path, err := changeset.WriteList(d.TempDir, files)
	if err != nil {
		inv.log.Warn(ctx, "change scoping disabled", zap.Error(err))
		return ""
	}
	return path
}

// recordRun stores the outcome in run history and progress.last_run.
// Failures are logged and never affect the exit code.
func recordRun(ctx context.Context, inv *invocation, id string, res *checks.Result, diffOnly bool, started, finished time.Time) {
	last := config.LastRun{
		ID:           id,
		Mode:         string(res.Mode),
		Plan:         res.Plan,
		ExitCode:     res.ExitCode,
		FailedStages: res.FailedStages,
		StartedAt:    started.UTC().Format(time.RFC3339),
		FinishedAt:   finished.UTC().Format(time.RFC3339),
	}
	if err := inv.store.RecordRun(last); err != nil {
		inv.log.Warn(ctx, "recording last run in progress failed", zap.Error(err))
	}

	db, err := openHistory(ctx, inv)
	if err != nil {
		inv.log.Warn(ctx, "run history unavailable", zap.Error(err))
		return
	}
	defer db.Close()

	err = db.LogRun(ctx, history.Run{
		ID:           id,
		Mode:         string(res.Mode),
		Plan:         res.Plan,
		ExitCode:     res.ExitCode,
		FailedStages: res.FailedStages,
		DiffOnly:     diffOnly,
		Duration:     res.Duration,
		StartedAt:    started,
		FinishedAt:   finished,
	})
	if err != nil {
		inv.log.Warn(ctx, "logging run history failed", zap.Error(err))
	}
}

// openHistory opens and migrates the run-history database.
func openHistory(ctx context.Context, inv *invocation) (*history.DB, error) {
	dsn := inv.settings.HistoryDSN
	if dsn == "" {
		dsn = inv.ws.HistoryPath()
	}
	db, err := history.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
