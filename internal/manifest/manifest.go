// Package manifest reads a workspace package's manifest file: the
// package.json-equivalent opaque-script-and-dependency declaration spec.md
// §3 calls "Package". Grounded on the teacher's internal/fs/package_json.go,
// trimmed of lockfile/transitive-dependency bookkeeping that belongs to
// package installation (an explicit Non-goal, spec.md §1).
package manifest

import (
	"encoding/json"
	"os"
)

// FileName is the manifest's canonical filename within a package directory.
const FileName = "package.json"

// Workspaces holds the root manifest's glob patterns naming where member
// packages live, e.g. ["packages/*", "apps/*"]. It accepts either a bare
// array or the {"packages": [...]} object form some package managers use.
type Workspaces []string

// UnmarshalJSON accepts both `"workspaces": ["a/*"]` and
// `"workspaces": {"packages": ["a/*"]}`.
func (w *Workspaces) UnmarshalJSON(data []byte) error {
	var alt struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(data, &alt); err == nil && alt.Packages != nil {
		*w = alt.Packages
		return nil
	}
	var plain []string
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	*w = plain
	return nil
}

// Manifest is the parsed contents of a package's manifest file.
type Manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Private         bool              `json:"private"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	PackageManager  string            `json:"packageManager"`
	Workspaces      Workspaces        `json:"workspaces"`
}

// Read parses the manifest file at path. A malformed manifest returns an
// error; the caller (the Workspace Scanner) decides whether that's fatal
// (root manifest) or merely skips the package (spec.md §4.1).
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes raw manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AllDependencies returns the union of dependencies and devDependencies,
// the set spec.md §3 says "contribute" to a package's internal-dependency
// edges.
func (m *Manifest) AllDependencies() map[string]string {
	out := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for name, version := range m.Dependencies {
		out[name] = version
	}
	for name, version := range m.DevDependencies {
		out[name] = version
	}
	return out
}
