// Command neex is the monorepo task orchestrator's binary entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/neex/neex/internal/cmd"
)

func main() {
	root := cmd.NewRootCommand()
	err := root.Execute()
	if err != nil && !cmd.IsExitError(err) {
		fmt.Fprintln(os.Stderr, "neex:", err)
	}
	os.Exit(cmd.ExitCodeOf(err))
}
