// Package pipeline implements spec.md §3's Pipeline entry and §4.1's
// loader/synthesis rules. Grounded on the teacher's internal/fs.TurboConfigJSON
// and its zero-config fallback, generalized to the exact default table
// spec.md §4.1 specifies.
package pipeline

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
)

// FileName is the pipeline config's canonical filename at the repo root.
const FileName = "pipeline.json"

// Entry is a single task's pipeline configuration (spec.md §3).
type Entry struct {
	DependsOn  []string `json:"dependsOn,omitempty"`
	Inputs     []string `json:"inputs,omitempty"`
	Outputs    []string `json:"outputs,omitempty"`
	Cache      *bool    `json:"cache,omitempty"`
	Persistent bool     `json:"persistent,omitempty"`
}

// CacheEnabled reports the entry's effective cache setting; the default is
// true per spec.md §3.
func (e Entry) CacheEnabled() bool {
	if e.Cache == nil {
		return true
	}
	return *e.Cache
}

// Performance holds the `performance` top-level field from the config file
// (concurrency defaults etc.); spec.md names the config shape but leaves its
// contents to the implementation.
type Performance struct {
	Concurrency int `json:"concurrency,omitempty"`
}

// File is the parsed pipeline.json document.
type File struct {
	Pipeline    map[string]Entry `json:"pipeline"`
	Performance Performance      `json:"performance"`
}

// Load reads pipeline.json from the repo root if present. The boolean return
// reports whether a config file was found; callers fall back to Synthesize
// when it is false.
func Load(rootDir string) (*File, bool, error) {
	path := rootDir + string(os.PathSeparator) + FileName
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, false, err
	}
	return &f, true, nil
}

var defaultBuildOutputs = []string{"dist", "build", ".next", ".nuxt"}

// Synthesize builds a pipeline from the root manifest's scripts, applying
// spec.md §4.1's default table and command-string heuristics. Scripts whose
// names begin with "pre" or "post" are excluded, matching npm's lifecycle
// script convention.
func Synthesize(scripts map[string]string) *File {
	f := &File{Pipeline: make(map[string]Entry)}
	for name, cmd := range scripts {
		if strings.HasPrefix(name, "pre") || strings.HasPrefix(name, "post") {
			continue
		}
		f.Pipeline[name] = synthesizeEntry(name, cmd)
	}
	return f
}

func synthesizeEntry(name, cmd string) Entry {
	falseVal := false

	isWatch := strings.Contains(cmd, "--watch") || strings.Contains(cmd, "-w")
	switch {
	case name == "dev" || name == "start" || isWatch:
		return Entry{Cache: &falseVal, Persistent: true}

	case name == "build":
		e := Entry{
			Cache:     boolPtr(true),
			Outputs:   append([]string(nil), defaultBuildOutputs...),
			DependsOn: []string{"^build"},
		}
		// A command-token heuristic below overrides the default build outputs.
		if h := synthesizeEntry("", cmd); h.Outputs != nil {
			e.Outputs = h.Outputs
		}
		return e

	case name == "test":
		return Entry{Cache: boolPtr(true), Outputs: []string{"coverage"}}

	case name == "lint" || name == "typecheck" || name == "type-check":
		return Entry{Cache: boolPtr(true)}
	}

	// Command-token heuristics set the outputs of any script not matched by
	// name above, and of "build" (which keeps its dependsOn).
	switch {
	case strings.Contains(cmd, "tsc"):
		return Entry{Cache: boolPtr(true), Outputs: []string{"dist"}}
	case strings.Contains(cmd, "next build"):
		return Entry{Cache: boolPtr(true), Outputs: []string{".next"}}
	case strings.Contains(cmd, "vite build"):
		return Entry{Cache: boolPtr(true), Outputs: []string{"dist"}}
	}

	return Entry{Cache: boolPtr(true)}
}

func boolPtr(b bool) *bool { return &b }

// SortedInputs returns the entry's inputs glob list, sorted, for stable
// fingerprint composition (spec.md §4.7 item 4).
func (e Entry) SortedInputs() []string {
	return sortedCopy(e.Inputs)
}

// SortedOutputs returns the entry's outputs glob list, sorted, for stable
// fingerprint composition (spec.md §4.7 item 5).
func (e Entry) SortedOutputs() []string {
	return sortedCopy(e.Outputs)
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
