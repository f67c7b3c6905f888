// Package cli implements the aiq command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjalve/aiq/internal/assets"
	"github.com/tjalve/aiq/internal/changeset"
	"github.com/tjalve/aiq/internal/checks"
	"github.com/tjalve/aiq/internal/config"
	"github.com/tjalve/aiq/internal/logging"
)

var version = "dev"

// SetVersion sets the version reported by `aiq version` and used to key
// the asset cache slot.
func SetVersion(v string) {
	version = v
}

// Deps are the process-level collaborators of a command tree. Tests swap
// them for fakes; Execute uses DefaultDeps.
type Deps struct {
	// Runner spawns children. Nil builds an ExecRunner from the project's
	// configured interpreter.
	Runner   checks.CommandRunner
	Packaged fs.FS
	Changes  changeset.Resolver
	Settings func() (config.Settings, error)
	Environ  func() []string
	Now      func() time.Time
	GOOS     string
	// TempDir holds per-invocation temp files; empty means os.TempDir().
	TempDir string
}

// DefaultDeps returns the production collaborators.
func DefaultDeps() Deps {
	return Deps{
		Packaged: assets.Packaged(),
		Changes:  changeset.GoGit{},
		Settings: config.LoadSettings,
		Environ:  os.Environ,
		Now:      time.Now,
		GOOS:     runtime.GOOS,
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	dir       string
	logLevel  string
	logFormat string
}

// NewRootCmd builds the command tree. Running the root without a
// subcommand prints a tip and behaves like `aiq run`.
func NewRootCmd(d Deps) *cobra.Command {
	g := &globalFlags{}
	rf := &runFlags{}

	root := &cobra.Command{
		Use:   "aiq",
		Short: "aiq: staged code-quality checks for any project",
		Long: `aiq runs a fixed catalog of ten quality stages (0 e2e, 1 lint, 2 format,
3 type_check, 4 unit_test, 5 sloc, 6 complexity, 7 maintainability,
8 coverage, 9 security) as external scripts, in a configurable order.

Project state lives in .aiq/ (quality.config.json, progress.json, history.db).
Quality scripts are embedded in the binary and cached under
~/.cache/aiq-cli/<version>/quality. Set AIQ_DEV_MODE=1 to warm the cache
from ./quality instead. Windows requires Bash (Git Bash or WSL).`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), `Tip: run "aiq help" for more info.`)
			return runCommand(cmd, d, g, rf)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.dir, "dir", "C", "", "project directory (default: current directory)")
	pf.StringVar(&g.logLevel, "log-level", "", "internal log level: debug, info, warn, error (env AIQ_LOG_LEVEL)")
	pf.StringVar(&g.logFormat, "log-format", "", "internal log format: console or json (env AIQ_LOG_FORMAT)")
	addRunFlags(root, rf)

	root.AddCommand(newRunCmd(d, g))
	root.AddCommand(newConfigCmd(d, g))
	root.AddCommand(newPlanCmd(d, g))
	root.AddCommand(newHistoryCmd(d, g))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the command tree with production dependencies.
func Execute() error {
	return NewRootCmd(DefaultDeps()).Execute()
}

// invocation is the per-invocation context every command builds once.
type invocation struct {
	ws       config.Workspace
	store    *config.Store
	settings config.Settings
	log      *logging.Logger
}

func (g *globalFlags) open(d Deps, stderr io.Writer) (*invocation, error) {
	loadSettings := d.Settings
	if loadSettings == nil {
		loadSettings = config.LoadSettings
	}
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		settings.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		settings.LogFormat = g.logFormat
	}

	log, err := logging.New(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat}, stderr)
	if err != nil {
		return nil, err
	}

	ws, err := config.NewWorkspace(g.dir)
	if err != nil {
		return nil, err
	}
	return &invocation{
		ws:       ws,
		store:    config.NewStore(ws),
		settings: settings,
		log:      log.Named("aiq"),
	}, nil
}

func (inv *invocation) close() {
	_ = inv.log.Sync()
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
