package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjalve/aiq/internal/checks"
	"github.com/tjalve/aiq/internal/history"
)

func newHistoryCmd(d Deps, g *globalFlags) *cobra.Command {
	var limit int
	var format, since string
	var stats bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent quality runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
			inv, err := g.open(d, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer inv.close()
			ctx := contextOf(cmd)

			db, err := openHistory(ctx, inv)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer db.Close()

			w := cmd.OutOrStdout()
			if stats {
				var from time.Time
				if since != "" {
					window, err := time.ParseDuration(since)
					if err != nil {
						return fmt.Errorf("invalid --since %q: %w", since, err)
					}
					now := d.Now
					if now == nil {
						now = time.Now
					}
					from = now().Add(-window)
				}
				st, err := db.Stats(ctx, from)
				if err != nil {
					return err
				}
				return printStats(w, st, format)
			}

			runs, err := db.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if format == "json" {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(w, runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}
			fmt.Fprintf(w, "%-20s %-6s %-6s %-4s %-9s %-20s %s\n",
				"STARTED", "MODE", "RESULT", "EXIT", "DURATION", "PLAN", "FAILED")
			fmt.Fprintf(w, "%s\n", strings.Repeat("-", 80))
			for _, r := range runs {
				result := "FAIL"
				if r.Passed() {
					result = "PASS"
				}
				fmt.Fprintf(w, "%-20s %-6s %-6s %-4d %-9s %-20s %s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Mode, result, r.ExitCode,
					r.Duration.Round(time.Millisecond), checks.FormatPlan(r.Plan), checks.FormatPlan(r.FailedStages))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&limit, "limit", 20, "number of runs to show (0 for all)")
	f.StringVar(&format, "format", "text", "output format: text or json")
	f.BoolVar(&stats, "stats", false, "show pass rates, durations and per-stage failure rates")
	f.StringVar(&since, "since", "", "with --stats, only count runs started within this duration (e.g. 168h)")
	return cmd
}

func printStats(w io.Writer, st history.Stats, format string) error {
	if format == "json" {
		return writeJSON(w, st)
	}
	if st.Runs == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "Runs: %d\n\n", st.Runs)
	fmt.Fprintf(w, "%-8s %-6s %-7s %-8s %-8s %s\n", "MODE", "RUNS", "PASS%", "AVG(s)", "P50(s)", "P95(s)")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 50))
	for _, m := range st.Modes {
		fmt.Fprintf(w, "%-8s %-6d %-7.1f %-8.1f %-8.1f %.1f\n", m.Mode, m.Count, m.PassPct, m.Avg, m.P50, m.P95)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-6s %-16s %-8s %-7s %s\n", "STAGE", "NAME", "PLANNED", "FAILED", "FAIL%")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 50))
	for _, s := range st.Stages {
		fmt.Fprintf(w, "%-6d %-16s %-8d %-7d %.1f\n", s.Stage, s.Name, s.Planned, s.Failed, s.FailurePct)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
