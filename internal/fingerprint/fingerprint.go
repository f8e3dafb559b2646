// Package fingerprint implements spec.md §4.7: a deterministic SHA-256
// fingerprint over the seven ordered inputs that, if changed, should
// invalidate a task's cache entry.
//
// Grounded on the teacher's internal/fs/hash.go (the "ordered, joined,
// hashed" pattern used for the whole-monorepo global hash), narrowed here to
// the single-task scope spec.md §4.7 defines.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// schemaVersion is spec.md §4.7 item 7: bumping it invalidates every cache
// entry in existence, since it changes every fingerprint unconditionally.
const schemaVersion = "1"

// separator joins the ordered input list before hashing (spec.md §4.7).
const separator = "|"

// Inputs bundles everything the fingerprinter needs for one task.
type Inputs struct {
	PackageName string
	PackageHash uint64
	// DependencyHashes maps internal dependency name to its package hash.
	DependencyHashes map[string]uint64
	Command          string
	TaskName         string
	InputGlobs       []string
	OutputGlobs      []string
}

// Compute derives the fingerprint hex string for one task invocation,
// following the exact ordering spec.md §4.7 specifies. The result is
// byte-identical across repeated calls with identical Inputs (spec.md §8
// property 1), since every set-valued field is sorted before joining.
func Compute(in Inputs) string {
	parts := make([]string, 0, 7)

	parts = append(parts, fmt.Sprintf("pkg:%s:%x", in.PackageName, in.PackageHash))

	depNames := make([]string, 0, len(in.DependencyHashes))
	for name := range in.DependencyHashes {
		depNames = append(depNames, name)
	}
	sort.Strings(depNames)
	for _, name := range depNames {
		parts = append(parts, fmt.Sprintf("dep:%s:%x", name, in.DependencyHashes[name]))
	}

	parts = append(parts, "cmd:"+in.Command)

	if len(in.InputGlobs) > 0 {
		sorted := append([]string(nil), in.InputGlobs...)
		sort.Strings(sorted)
		parts = append(parts, "inputs:"+strings.Join(sorted, ","))
	}

	if len(in.OutputGlobs) > 0 {
		sorted := append([]string(nil), in.OutputGlobs...)
		sort.Strings(sorted)
		parts = append(parts, "outputs:"+strings.Join(sorted, ","))
	}

	parts = append(parts, "task:"+in.TaskName)
	parts = append(parts, "schema:"+schemaVersion)

	joined := strings.Join(parts, separator)
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
