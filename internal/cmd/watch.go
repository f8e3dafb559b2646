package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/neex/neex/internal/progress"
	"github.com/neex/neex/internal/signals"
	"github.com/neex/neex/internal/watch"
)

// newWatchCommand implements `neex watch <task> [task...]` (spec.md §4.11):
// observe every package's source tree and re-run the given tasks, scoped to
// the affected subgraph, on every debounced batch of file changes.
func newWatchCommand(newApp func(*cobra.Command) (*App, error)) *cobra.Command {
	c := &cobra.Command{
		Use:   "watch <task> [task...]",
		Short: "Watch the workspace and re-run tasks on change",
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

			debounce := time.Duration(app.Config.DebounceMillis) * time.Millisecond
			w, err := watch.New(app.ProjectGraph, app.Logger, debounce)
			if err != nil {
				return err
			}
			defer w.Close()

			sigWatcher := signals.NewWatcher()
			sigWatcher.AddOnClose(func() { _ = w.Close() })

			w.OnRebuild = func(affectedPkgs []string) {
				app.Logger.Info("rebuilding affected packages", "packages", affectedPkgs)
				for _, taskName := range args {
					// Smart Watcher hand-offs never stop on error (spec.md
					// §4.11): one failing package should not block the rest
					// from rebuilding in the same dev loop iteration.
					if _, runErr := app.RunTask(taskName, affectedPkgs, false, nil, progress.NewBroadcaster()); runErr != nil {
						app.Logger.Error("watch rebuild failed", "task", taskName, "error", runErr)
					}
				}
			}

			if err := w.Start(); err != nil {
				return err
			}
			app.Logger.Info("watching for changes", "tasks", args)
			<-sigWatcher.Done()
			return nil
		},
	}
	return c
}
