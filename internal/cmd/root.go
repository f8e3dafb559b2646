// Package cmd implements spec.md §6's CLI surface: the `run`, `affected`,
// `watch`, and `cache` subcommands mounted on a shared root config.
//
// Grounded on the teacher's cmd/turbo/main.go (one subcommand package per
// verb, global flags threaded through a shared Config) rebuilt on
// `spf13/cobra` per SPEC_FULL.md §6's ambient CLI/config stack, in place of
// the teacher's `mitchellh/cli` command map.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neex/neex/internal/config"
)

// exit codes, spec.md §6: "Exit code 0 on full success; 1 if any
// non-persistent task failed; a documented non-zero value (e.g. 130) on
// user interruption."
const (
	ExitSuccess      = 0
	ExitTaskFailure  = 1
	ExitInterrupted  = 130
)

// NewRootCommand builds the `neex` command tree.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cwd string

	root := &cobra.Command{
		Use:           "neex",
		Short:         "A monorepo task orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("cwd", "", "the directory to run in (default: current directory)")
	flags.IntP("max-parallel", "", 0, "maximum number of concurrent tasks (default: number of CPUs)")
	flags.Bool("stop-on-error", false, "cancel remaining tasks after the first failure")
	flags.Bool("no-color", false, "disable colorized output")
	flags.BoolP("verbose", "v", false, "enable debug-level logging")
	flags.String("base-ref", "", "git ref to diff against for affected-package detection")

	_ = v.BindPFlag("max-parallel", flags.Lookup("max-parallel"))
	_ = v.BindPFlag("stop-on-error", flags.Lookup("stop-on-error"))
	_ = v.BindPFlag("no-color", flags.Lookup("no-color"))
	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = v.BindPFlag("base-ref", flags.Lookup("base-ref"))

	root.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		cwd, _ = flags.GetString("cwd")
		if cwd == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determining working directory: %w", err)
			}
			cwd = wd
		}
		return nil
	}

	newApp := func(c *cobra.Command) (*App, error) {
		cfg, err := config.Load(v, cwd)
		if err != nil {
			return nil, err
		}
		if parallel, _ := flags.GetInt("max-parallel"); parallel > 0 {
			cfg.MaxParallel = parallel
		}
		return NewApp(cfg)
	}

	root.AddCommand(
		newRunCommand(newApp),
		newAffectedCommand(newApp),
		newWatchCommand(newApp),
		newCacheCommand(newApp),
	)

	return root
}
