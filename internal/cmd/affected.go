package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neex/neex/internal/affected"
)

// newAffectedCommand implements `neex affected` (spec.md §4.10): print the
// packages affected by the current VCS diff, in topological order.
func newAffectedCommand(newApp func(*cobra.Command) (*App, error)) *cobra.Command {
	c := &cobra.Command{
		Use:   "affected",
		Short: "List packages affected by the current working tree's changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := app.Close(); closeErr != nil {
					app.Logger.Warn("cleanup failed", "error", closeErr)
				}
			}()

			baseRef, _ := cmd.Flags().GetString("base-ref")
			pkgs := affected.Detect(app.Config.RootDir, baseRef, app.ProjectGraph)
			ordered := affected.TopologicalOrder(pkgs, app.ProjectGraph)

			for _, p := range ordered {
				fmt.Printf("%s\t%s\n", p.Name, p.Reason)
			}
			return nil
		},
	}
	return c
}
