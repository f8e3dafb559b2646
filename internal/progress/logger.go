// Package progress implements the ambient structured-logging and
// prefixed-output-streaming concerns: a leveled hashicorp/go-hclog logger
// (§2 component O) and the event stream the scheduler emits to subscribers
// (spec.md §6's "progress event stream").
//
// Grounded on the teacher's internal/config/config.go (hclog construction,
// color/level wiring) and internal/logstreamer (line-buffered prefixing).
package progress

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// NewLogger builds the root structured logger. verbose raises the level to
// Debug; noColor forces monochrome output even on a TTY, matching the
// teacher's --no-color / verbosity handling.
func NewLogger(verbose bool, noColor bool) hclog.Logger {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}
	color := hclog.AutoColor
	if noColor {
		color = hclog.ColorOff
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "neex",
		Level:  level,
		Color:  color,
		Output: os.Stderr,
	})
}

// NullWriter discards output; used when a task's stdout/stderr should not
// be forwarded to the live terminal (e.g. during cache-hit replay capture).
var NullWriter io.Writer = io.Discard
