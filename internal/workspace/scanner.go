// Package workspace discovers the set of packages in a monorepo by walking
// the root manifest's workspace globs (spec.md §4.1).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/neex/neex/internal/manifest"
)

// Package is the spec.md §3 "Package" entity: identity, location, declared
// scripts, and the internal dependency names derived by intersecting its
// manifest dependencies with the repo's package set.
type Package struct {
	Name            string
	Dir             string // absolute path
	Version         string
	Scripts         map[string]string
	InternalDeps    []string // filled in by ResolveInternalDeps
	ManifestMtimeNs int64
	ManifestSize    int64
}

// ScriptCommand returns the opaque shell command for a script, and whether
// it is declared.
func (p *Package) ScriptCommand(script string) (string, bool) {
	cmd, ok := p.Scripts[script]
	return cmd, ok
}

// Scan walks every immediate subdirectory of every workspace glob base in
// the root manifest and returns the discovered packages, plus the root
// manifest itself. The root manifest's own package (if named) is always
// excluded from the returned set (spec.md §4.1). Malformed member manifests
// are skipped silently; a malformed ROOT manifest is a fatal configuration
// error.
func Scan(rootDir string) (root *manifest.Manifest, pkgs map[string]*Package, err error) {
	rootManifestPath := filepath.Join(rootDir, manifest.FileName)
	root, err = manifest.Read(rootManifestPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading root manifest: %w", err)
	}

	pkgs = make(map[string]*Package)
	for _, pattern := range root.Workspaces {
		base, tail := splitGlobBase(pattern)
		baseDir := filepath.Join(rootDir, base)
		entries, readErr := os.ReadDir(baseDir)
		if readErr != nil {
			// A workspace base that doesn't exist yet (e.g. "packages/*" on
			// a brand-new repo) is not fatal.
			continue
		}

		var matcher glob.Glob
		if tail != "" && tail != "*" {
			matcher, _ = glob.Compile(tail)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if matcher != nil && !matcher.Match(entry.Name()) {
				continue
			}
			pkgDir := filepath.Join(baseDir, entry.Name())
			pkgManifestPath := filepath.Join(pkgDir, manifest.FileName)
			info, statErr := os.Stat(pkgManifestPath)
			if statErr != nil {
				continue // no manifest here; skip silently
			}
			m, parseErr := manifest.Read(pkgManifestPath)
			if parseErr != nil || m.Name == "" {
				continue // malformed manifest never aborts the scan
			}
			// The root manifest is explicitly excluded even if a workspace
			// glob happens to resolve back onto the repo root.
			if samePath(pkgDir, rootDir) {
				continue
			}
			pkgs[m.Name] = &Package{
				Name:            m.Name,
				Dir:             pkgDir,
				Version:         m.Version,
				Scripts:         m.Scripts,
				ManifestMtimeNs: info.ModTime().UnixNano(),
				ManifestSize:    info.Size(),
			}
		}
	}

	ResolveInternalDeps(root, pkgs)
	return root, pkgs, nil
}

// ResolveInternalDeps fills in each package's InternalDeps by re-reading its
// manifest's dependency names and intersecting them with the discovered
// package-name set (spec.md §3's Package.InternalDeps derivation). Scan calls
// it once over every discovered package.
func ResolveInternalDeps(root *manifest.Manifest, pkgs map[string]*Package) {
	for name, pkg := range pkgs {
		m, err := manifest.Read(filepath.Join(pkg.Dir, manifest.FileName))
		if err != nil {
			continue
		}
		var deps []string
		for dep := range m.AllDependencies() {
			if dep == name {
				continue
			}
			if _, ok := pkgs[dep]; ok {
				deps = append(deps, dep)
			}
		}
		sort.Strings(deps)
		pkg.InternalDeps = deps
	}
}

// Names returns the sorted list of discovered package names.
func Names(pkgs map[string]*Package) []string {
	out := make([]string, 0, len(pkgs))
	for name := range pkgs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// splitGlobBase splits a pattern like "packages/*" into its literal
// directory prefix ("packages") and the glob tail ("*") applied to each
// immediate child's name.
func splitGlobBase(pattern string) (base string, tail string) {
	pattern = strings.TrimSuffix(pattern, "/")
	idx := strings.LastIndex(pattern, "/")
	if idx < 0 {
		return ".", pattern
	}
	return pattern[:idx], pattern[idx+1:]
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
