package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neex/neex/internal/progress"
	"github.com/neex/neex/internal/signals"
)

// newRunCommand implements `neex run <task> [task...]` (spec.md §6): execute
// one or more pipeline tasks across every package that declares them.
func newRunCommand(newApp func(*cobra.Command) (*App, error)) *cobra.Command {
	var filterPkgs []string

	c := &cobra.Command{
		Use:   "run <task> [task...]",
		Short: "Run one or more pipeline tasks across the workspace",
		Args:  cobra.MinimumNArgs(1),
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

			stopOnError, _ := cmd.Flags().GetBool("stop-on-error")

			sigWatcher := signals.NewWatcher()
			interruptCh := make(chan struct{})
			sigWatcher.AddOnClose(func() { close(interruptCh) })
			defer sigWatcher.Close()

			exitCode := ExitSuccess
			for _, taskName := range args {
				summary, runErr := app.RunTask(taskName, filterPkgs, stopOnError, interruptCh, progress.NewBroadcaster())
				if runErr != nil {
					return fmt.Errorf("running task %q: %w", taskName, runErr)
				}
				app.Logger.Info("task run complete",
					"task", taskName, "success", summary.Success, "failed", summary.Failed,
					"skipped", summary.Skipped, "durationMs", summary.TotalMs)
				if summary.Interrupted {
					return &exitError{code: ExitInterrupted}
				}
				if summary.Failed > 0 {
					exitCode = ExitTaskFailure
				}
			}
			if exitCode != ExitSuccess {
				return &exitError{code: exitCode}
			}
			return nil
		},
	}

	c.Flags().StringSliceVar(&filterPkgs, "filter", nil, "restrict the run to these packages (comma-separated)")
	return c
}

// exitError carries a specific process exit code out of a cobra RunE
// without printing an additional error line (spec.md §6's exit-code table is
// the user-facing contract, not a generic Go error message).
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// ExitCodeOf unwraps an error returned from the root command into the
// process exit code main() should use.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return ExitTaskFailure
}

// IsExitError reports whether err is the structured exitError carrying a
// process exit code, vs. a message main() should still print.
func IsExitError(err error) bool {
	_, ok := err.(*exitError)
	return ok
}
