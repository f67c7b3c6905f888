package checks

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/tjalve/aiq/internal/config"
	"github.com/tjalve/aiq/internal/stage"
)

// fakeStage returns a scripted outcome without spawning anything.
type fakeStage struct {
	id       int
	exitCode int
	err      error
	gotOpts  stage.RunOptions
	gotEnv   []string
	runs     int
}

func (f *fakeStage) ID() int            { return f.id }
func (f *fakeStage) Name() string       { return stage.Name(f.id) }
func (f *fakeStage) ScriptPath() string { return "/fake/" + f.Name() }

func (f *fakeStage) Run(ctx context.Context, opts stage.RunOptions, env []string) (stage.Outcome, error) {
	f.runs++
	f.gotOpts = opts
	f.gotEnv = env
	return stage.Outcome{ExitCode: f.exitCode, Duration: time.Millisecond}, f.err
}

func testEngine(t *testing.T, runner CommandRunner) *Engine {
	t.Helper()
	return NewEngine(runner, EngineConfig{
		Dir:     "/project",
		BaseEnv: []string{"PATH=/bin"},
		TempDir: t.TempDir(),
	})
}

func TestRunSingle_Success(t *testing.T) {
	e := testEngine(t, &mockCmd{})
	st := &fakeStage{id: 3}

	res, err := e.RunSingle(context.Background(), st, Options{
		RunOptions: stage.RunOptions{Verbose: true},
		Env:        map[string]string{config.EnvCCNLimit: "12"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Passed() || res.ExitCode != 0 {
		t.Errorf("expected pass, got %+v", res)
	}
	if res.Mode != ModeSingle || !reflect.DeepEqual(res.Plan, []int{3}) {
		t.Errorf("unexpected result %+v", res)
	}
	if !st.gotOpts.Verbose {
		t.Error("verbose flag not forwarded")
	}
	if v, ok := envValue(st.gotEnv, config.EnvCCNLimit); !ok || v != "12" {
		t.Errorf("override env not forwarded: %v", st.gotEnv)
	}
	if v, _ := envValue(st.gotEnv, "PATH"); v != "/bin" {
		t.Errorf("base env not inherited: %v", st.gotEnv)
	}
}

func TestRunSingle_PropagatesExitCode(t *testing.T) {
	e := testEngine(t, &mockCmd{})
	st := &fakeStage{id: 6, exitCode: 5}

	res, err := e.RunSingle(context.Background(), st, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 5 {
		t.Errorf("exit code = %d, want 5", res.ExitCode)
	}
	if !reflect.DeepEqual(res.FailedStages, []int{6}) {
		t.Errorf("failed stages = %v, want [6]", res.FailedStages)
	}
}

func TestRunSingle_LaunchError(t *testing.T) {
	e := testEngine(t, &mockCmd{})
	st := &fakeStage{id: 1, exitCode: -1, err: errors.New("exec format error")}

	res, err := e.RunSingle(context.Background(), st, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.ExitCode != ExitLaunchFailure {
		t.Errorf("exit code = %d, want %d", res.ExitCode, ExitLaunchFailure)
	}
}

func TestRunPlan_EmptyPlanSpawnsNothing(t *testing.T) {
	mock := &mockCmd{}
	e := testEngine(t, mock)

	res, err := e.RunPlan(context.Background(), "/q/check.sh", []int{}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || res.Spawned {
		t.Errorf("expected trivial success, got %+v", res)
	}
	if len(mock.calls) != 0 {
		t.Errorf("expected no calls, got %d", len(mock.calls))
	}
}

func TestRunPlan_ForwardsArgsAndEnv(t *testing.T) {
	mock := &mockCmd{}
	e := testEngine(t, mock)
	upTo := 4

	res, err := e.RunPlan(context.Background(), "/q/check.sh", []int{0, 1, 4}, Options{
		RunOptions: stage.RunOptions{Verbose: true, DryRun: true},
		UpTo:       &upTo,
		Env: map[string]string{
			config.EnvChangedOnly:     "1",
			config.EnvChangedFileList: "/tmp/list.txt",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || !res.Spawned {
		t.Errorf("unexpected result %+v", res)
	}
	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.calls))
	}
	c := mock.calls[0]
	if c.Path != "/q/check.sh" || c.Dir != "/project" {
		t.Errorf("unexpected command %+v", c)
	}
	if !reflect.DeepEqual(c.Args, []string{"4", "--verbose", "--dry-run"}) {
		t.Errorf("args = %v", c.Args)
	}
	if v, _ := envValue(c.Env, config.EnvStagePlan); v != "0 1 4" {
		t.Errorf("%s = %q", config.EnvStagePlan, v)
	}
	if v, _ := envValue(c.Env, config.EnvChangedOnly); v != "1" {
		t.Errorf("%s = %q", config.EnvChangedOnly, v)
	}
	if _, ok := envValue(c.Env, config.EnvFailedStages); !ok {
		t.Errorf("%s not set", config.EnvFailedStages)
	}
}

func TestRunPlan_ReadsFailedStagesAndCleansUp(t *testing.T) {
	var failedPath string
	mock := &mockCmd{
		results: []mockResult{{ExitCode: 3}},
		onRun: func(c Command) {
			failedPath, _ = envValue(c.Env, config.EnvFailedStages)
			if err := os.WriteFile(failedPath, []byte("1\n6\n"), 0o644); err != nil {
				t.Errorf("write failed-stages file: %v", err)
			}
		},
	}
	e := testEngine(t, mock)

	res, err := e.RunPlan(context.Background(), "/q/check.sh", []int{0, 1, 2, 3, 4, 5, 6}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if !reflect.DeepEqual(res.FailedStages, []int{1, 6}) {
		t.Errorf("failed stages = %v, want [1 6]", res.FailedStages)
	}
	if _, err := os.Stat(failedPath); !os.IsNotExist(err) {
		t.Errorf("failed-stages file %s not removed (err=%v)", failedPath, err)
	}
}

func TestRunPlan_FailureWithoutDetail(t *testing.T) {
	mock := &mockCmd{
		results: []mockResult{{ExitCode: 1}},
		onRun: func(c Command) {
			path, _ := envValue(c.Env, config.EnvFailedStages)
			os.Remove(path)
		},
	}
	e := testEngine(t, mock)

	res, err := e.RunPlan(context.Background(), "/q/check.sh", []int{1}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
	if len(res.FailedStages) != 0 {
		t.Errorf("failed stages = %v, want none", res.FailedStages)
	}
}

func TestRunPlan_LaunchError(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{ExitCode: -1, Err: errors.New("permission denied")}}}
	e := testEngine(t, mock)

	res, err := e.RunPlan(context.Background(), "/q/check.sh", []int{1}, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.ExitCode != ExitLaunchFailure {
		t.Errorf("exit code = %d, want %d", res.ExitCode, ExitLaunchFailure)
	}
}

func TestFormatPlan(t *testing.T) {
	if got := FormatPlan([]int{0, 5, 9}); got != "0 5 9" {
		t.Errorf("FormatPlan() = %q", got)
	}
	if got := FormatPlan(nil); got != "" {
		t.Errorf("FormatPlan(nil) = %q", got)
	}
}
