package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tjalve/aiq/internal/config"
	"github.com/tjalve/aiq/internal/report"
	"github.com/tjalve/aiq/internal/stage"
)

type configFlags struct {
	printConfig bool
	setStage    int
	format      string
	validate    bool
	diff        bool
}

func newConfigCmd(d Deps, g *globalFlags) *cobra.Command {
	cf := &configFlags{}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Initialize, inspect or update .aiq configuration",
		Long: `Without flags, writes the default quality.config.json and progress.json
into .aiq/ unless they already exist. Always exits 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := g.open(d, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer inv.close()

			// Problems are reported on stderr; config always exits 0.
			out, rep := cmd.OutOrStdout(), report.New(cmd.ErrOrStderr())
			switch {
			case cf.printConfig:
				err = printConfig(out, inv.store, cf.format)
			case cmd.Flags().Changed("set-stage"):
				setStage(out, rep, inv.store, cf.setStage)
			case cf.validate:
				validateConfig(out, inv.store)
			case cf.diff:
				err = diffConfig(out, inv.store)
			default:
				ensureDefaults(out, rep, inv.store)
			}
			if err != nil {
				rep.Errorf("%v", err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&cf.printConfig, "print-config", false, "print configuration and progress")
	f.IntVar(&cf.setStage, "set-stage", 0, "set progress.current_stage to N (0-9)")
	f.StringVar(&cf.format, "format", "json", "output format for --print-config: json or yaml")
	f.BoolVar(&cf.validate, "validate", false, "report structural problems in the configuration")
	f.BoolVar(&cf.diff, "diff", false, "show how the configuration differs from the defaults")
	return cmd
}

// documents is what --print-config shows.
type documents struct {
	Config   config.Config   `json:"config" yaml:"config"`
	Progress config.Progress `json:"progress" yaml:"progress"`
}

func printConfig(w io.Writer, store *config.Store, format string) error {
	docs := documents{Config: store.LoadConfig(), Progress: store.LoadProgress()}
	switch format {
	case "", "json":
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling config: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		out, err := yaml.Marshal(docs)
		if err != nil {
			return fmt.Errorf("marshalling config: %w", err)
		}
		fmt.Fprint(w, string(out))
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
	return nil
}

func setStage(w io.Writer, rep *report.Reporter, store *config.Store, n int) {
	if !stage.Valid(n) {
		rep.Errorf("--set-stage must be between %d and %d, got %d", stage.MinID, stage.MaxID, n)
		return
	}
	if err := store.SetStage(n); err != nil {
		rep.Errorf("%v", err)
		return
	}
	fmt.Fprintf(w, "Set current_stage=%d in %s\n", n, store.Workspace().ProgressPath())
}

func validateConfig(w io.Writer, store *config.Store) {
	errs := config.Validate(store.LoadConfig())
	if len(errs) == 0 {
		fmt.Fprintln(w, "Configuration is valid.")
		return
	}
	fmt.Fprintln(w, "Validation errors:")
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}

func diffConfig(w io.Writer, store *config.Store) error {
	want, err := json.MarshalIndent(config.DefaultConfig(), "", "  ")
	if err != nil {
		return err
	}
	got, err := json.MarshalIndent(store.LoadConfig(), "", "  ")
	if err != nil {
		return err
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(want) + "\n"),
		B:        difflib.SplitLines(string(got) + "\n"),
		FromFile: "defaults",
		ToFile:   store.Workspace().ConfigPath(),
		Context:  2,
	})
	if err != nil {
		return fmt.Errorf("diff config: %w", err)
	}
	if text == "" {
		fmt.Fprintln(w, "Configuration matches the defaults.")
		return nil
	}
	fmt.Fprint(w, text)
	return nil
}

func ensureDefaults(w io.Writer, rep *report.Reporter, store *config.Store) {
	ws := store.Workspace()
	res, err := store.EnsureDefaults()
	if err != nil {
		rep.Errorf("%v", err)
		return
	}
	if res.WroteConfig {
		fmt.Fprintf(w, "Wrote default config to %s\n", ws.ConfigPath())
	} else {
		fmt.Fprintf(w, "%s already exists. Use --print-config to view.\n", ws.ConfigPath())
	}
	if res.WroteProgress {
		fmt.Fprintf(w, "Wrote default progress to %s\n", ws.ProgressPath())
	}
}
