package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tjalve/aiq/internal/plan"
	"github.com/tjalve/aiq/internal/stage"
)

func newPlanCmd(d Deps, g *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which stages a run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := g.open(d, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer inv.close()

			stages := plan.Compute(inv.store.LoadConfig(), inv.store.LoadProgress(), planOptions(cmd, rf))
			w := cmd.OutOrStdout()
			if len(stages) == 0 {
				fmt.Fprintln(w, "No stages to run.")
				return nil
			}
			fmt.Fprintf(w, "%-6s %-16s %s\n", "STAGE", "NAME", "SCRIPT")
			fmt.Fprintf(w, "%s\n", strings.Repeat("-", 44))
			for _, id := range stages {
				script, _ := stage.ScriptName(id)
				fmt.Fprintf(w, "%-6d %-16s %s\n", id, stage.Name(id), script)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&rf.only, "only", 0, "preview only stage N")
	f.IntVar(&rf.from, "from", 0, "skip stages below N")
	f.IntVar(&rf.upTo, "up-to", 0, "skip stages above N")
	f.IntSliceVar(&rf.disable, "disable", nil, "skip stage N (repeatable)")
	return cmd
}
