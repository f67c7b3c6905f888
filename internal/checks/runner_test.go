package checks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/tjalve/aiq/internal/stage"
)

// mockCmd records calls and returns configured results.
type mockCmd struct {
	calls   []Command
	results []mockResult
	callIdx int
	// onRun lets a test act as the child (e.g. write the failed-stages file).
	onRun func(c Command)
}

type mockResult struct {
	ExitCode int
	Err      error
}

func (m *mockCmd) Run(ctx context.Context, c Command) (int, error) {
	m.calls = append(m.calls, c)
	if m.onRun != nil {
		m.onRun(c)
	}
	if m.callIdx >= len(m.results) {
		return 0, nil
	}
	r := m.results[m.callIdx]
	m.callIdx++
	return r.ExitCode, r.Err
}

func envValue(env []string, key string) (string, bool) {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecRunner_ExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, "fail.sh", `[ "$1" = "--verbose" ] || exit 9
[ "$AIQ_TEST_VALUE" = "42" ] || exit 8
exit 3`)

	r := &ExecRunner{Stdout: &strings.Builder{}, Stderr: &strings.Builder{}}
	code, err := r.Run(context.Background(), Command{
		Path: script,
		Args: []string{"--verbose"},
		Env:  append(os.Environ(), "AIQ_TEST_VALUE=42"),
		Dir:  dir,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestExecRunner_Interpreter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "not-executable.sh")
	if err := os.WriteFile(path, []byte("exit 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &ExecRunner{Interpreter: []string{"sh"}}
	code, err := r.Run(context.Background(), Command{Path: path, Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 4 {
		t.Errorf("exit code = %d, want 4", code)
	}
}

func TestExecRunner_LaunchFailure(t *testing.T) {
	r := &ExecRunner{}
	code, err := r.Run(context.Background(), Command{Path: filepath.Join(t.TempDir(), "missing.sh")})
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
}

func TestScriptStage_Run(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{ExitCode: 2}}}
	st := NewScriptStage(4, "/q/stages/4-unit_test.sh", "/project", mock)

	out, err := st.Run(context.Background(), stage.RunOptions{DryRun: true}, []string{"A=1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", out.ExitCode)
	}
	if st.Name() != "unit_test" {
		t.Errorf("name = %q, want unit_test", st.Name())
	}
	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.calls))
	}
	c := mock.calls[0]
	if c.Path != "/q/stages/4-unit_test.sh" || c.Dir != "/project" {
		t.Errorf("unexpected command %+v", c)
	}
	if len(c.Args) != 1 || c.Args[0] != "--dry-run" {
		t.Errorf("args = %v, want [--dry-run]", c.Args)
	}
}

func TestLookupStage(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "1-lint.sh", "exit 0")
	mock := &mockCmd{}

	st, err := LookupStage(1, dir, "/project", mock)
	if err != nil {
		t.Fatalf("LookupStage(1): %v", err)
	}
	if st.ScriptPath() != filepath.Join(dir, "1-lint.sh") {
		t.Errorf("script path = %q", st.ScriptPath())
	}

	if _, err := LookupStage(42, dir, "/project", mock); !errors.Is(err, stage.ErrUnknownStage) {
		t.Errorf("LookupStage(42) err = %v, want ErrUnknownStage", err)
	}
	if _, err := LookupStage(2, dir, "/project", mock); !errors.Is(err, stage.ErrMissingScript) {
		t.Errorf("LookupStage(2) err = %v, want ErrMissingScript", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("lookup spawned %d processes", len(mock.calls))
	}
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "LIZARD_CCN_LIMIT=1", "HOME=/root"}
	got := MergeEnv(base, map[string]string{
		"LIZARD_CCN_LIMIT": "12",
		"B_NEW":            "b",
		"A_NEW":            "a",
	})
	want := []string{"PATH=/bin", "LIZARD_CCN_LIMIT=12", "HOME=/root", "A_NEW=a", "B_NEW=b"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("MergeEnv() = %v, want %v", got, want)
	}
	if base[1] != "LIZARD_CCN_LIMIT=1" {
		t.Error("MergeEnv mutated its input")
	}
}

func TestParseFailedStages(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"\n\n", nil},
		{"1\n6\n", []int{1, 6}},
		{" 3 \r\nfoo\n3\n9", []int{3, 9}},
	}
	for _, tt := range tests {
		got := ParseFailedStages(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("ParseFailedStages(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseFailedStages(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestReadFailedStages_Missing(t *testing.T) {
	if got := ReadFailedStages(filepath.Join(t.TempDir(), "nope.txt")); got != nil {
		t.Errorf("ReadFailedStages(missing) = %v, want nil", got)
	}
}
