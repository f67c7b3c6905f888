// Package checks runs quality stages as child processes and collects their
// outcome.
package checks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tjalve/aiq/internal/stage"
)

// Command describes one child process.
type Command struct {
	Path string
	Args []string
	// Env is the complete child environment.
	Env []string
	Dir string
}

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, c Command) (exitCode int, err error)
}

// ExecRunner implements CommandRunner by spawning the command with the
// parent's standard streams, so output is visible live.
type ExecRunner struct {
	// Interpreter, when set, is prepended to every command (e.g. ["bash"]).
	Interpreter []string
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
}

// Run blocks until the child exits. A child killed by a signal reports
// 128+signal, as a shell would.
func (e *ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	argv := append(append([]string{}, e.Interpreter...), c.Path)
	argv = append(argv, c.Args...)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if e.Stdin != nil {
		cmd.Stdin = e.Stdin
	}
	if e.Stdout != nil {
		cmd.Stdout = e.Stdout
	}
	if e.Stderr != nil {
		cmd.Stderr = e.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("exec %s: %w", c.Path, err)
}

// ScriptStage is a stage backed by a script file.
type ScriptStage struct {
	id     int
	path   string
	dir    string
	runner CommandRunner
}

var _ stage.Stage = (*ScriptStage)(nil)

// NewScriptStage binds stage id to the script at path. dir is the child's
// working directory.
func NewScriptStage(id int, path, dir string, runner CommandRunner) *ScriptStage {
	return &ScriptStage{id: id, path: path, dir: dir, runner: runner}
}

func (s *ScriptStage) ID() int            { return s.id }
func (s *ScriptStage) Name() string       { return stage.Name(s.id) }
func (s *ScriptStage) ScriptPath() string { return s.path }

// Run executes the script once.
func (s *ScriptStage) Run(ctx context.Context, opts stage.RunOptions, env []string) (stage.Outcome, error) {
	start := time.Now()
	code, err := s.runner.Run(ctx, Command{
		Path: s.path,
		Args: opts.Args(),
		Env:  env,
		Dir:  s.dir,
	})
	out := stage.Outcome{ExitCode: code, Duration: time.Since(start)}
	if err != nil {
		return out, fmt.Errorf("run stage %d: %w", s.id, err)
	}
	return out, nil
}

// LookupStage resolves stage id to its script under stagesDir. It fails with
// stage.ErrUnknownStage or stage.ErrMissingScript before anything is spawned.
func LookupStage(id int, stagesDir, workDir string, runner CommandRunner) (*ScriptStage, error) {
	file, ok := stage.ScriptName(id)
	if !ok {
		return nil, fmt.Errorf("stage %d: %w", id, stage.ErrUnknownStage)
	}
	path := filepath.Join(stagesDir, file)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("stage %d (%s): %w", id, path, stage.ErrMissingScript)
	}
	return NewScriptStage(id, path, workDir, runner), nil
}
