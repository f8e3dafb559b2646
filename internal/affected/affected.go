// Package affected implements spec.md §4.10: mapping a VCS diff to the set
// of packages that must be reconsidered, via longest-prefix-match against
// package directories and transitive closure over the Project Graph.
//
// Grounded on the teacher's internal/scm/git_go.go (shelling out to git for
// diffed/untracked files) and internal/pkg_errors usage, generalized from
// "changed files" to "affected packages" per spec.md §4.10.
package affected

import (
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/neex/neex/internal/pkggraph"
)

// Reason is why a package is included in the affected set.
type Reason string

const (
	ReasonChanged    Reason = "changed"
	ReasonDependency Reason = "dependency"
)

// Package is one entry in the detector's result (spec.md §4.10).
type Package struct {
	Name   string
	Reason Reason
	// Files lists the specific changed files, populated only for
	// ReasonChanged entries.
	Files []string
}

// Detect returns the packages affected relative to baseRef (empty string
// means "the previous commit"), rooted at repoRoot. Any VCS failure (not a
// repo, no commits, git missing) yields an empty, non-error result — per
// spec.md §4.10 callers interpret "empty" as "everything or nothing"
// themselves.
func Detect(repoRoot string, baseRef string, pg *pkggraph.Graph) []Package {
	changedFiles, err := diffedFiles(repoRoot, baseRef)
	if err != nil {
		return nil
	}

	directPkgs := make(map[string][]string)
	for _, file := range changedFiles {
		pkg := longestPrefixMatch(repoRoot, file, pg)
		if pkg == "" {
			continue
		}
		directPkgs[pkg] = append(directPkgs[pkg], file)
	}

	var directNames []string
	for name := range directPkgs {
		directNames = append(directNames, name)
	}
	sort.Strings(directNames)

	closure := pg.TransitiveDependents(directNames)
	direct := make(map[string]bool, len(directNames))
	for _, name := range directNames {
		direct[name] = true
	}

	out := make([]Package, 0, len(closure))
	for _, name := range closure {
		if direct[name] {
			files := append([]string(nil), directPkgs[name]...)
			sort.Strings(files)
			out = append(out, Package{Name: name, Reason: ReasonChanged, Files: files})
		} else {
			out = append(out, Package{Name: name, Reason: ReasonDependency})
		}
	}
	return out
}

// TopologicalOrder re-emits pkgs (as returned by Detect) in the order given
// by pg's topological sort, dependencies first, so the result can be handed
// to the scheduler as-is (spec.md §4.10's "topological output").
func TopologicalOrder(pkgs []Package, pg *pkggraph.Graph) []Package {
	byName := make(map[string]Package, len(pkgs))
	for _, p := range pkgs {
		byName[p.Name] = p
	}
	var out []Package
	for _, name := range pg.TopologicalOrder() {
		if p, ok := byName[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// diffedFiles unions the diff-against-ref, staged, unstaged, and untracked
// file lists (spec.md §4.10).
func diffedFiles(repoRoot string, baseRef string) ([]string, error) {
	if baseRef == "" {
		baseRef = "HEAD^"
	}

	seen := make(map[string]bool)
	var files []string
	add := func(list []string) {
		for _, f := range list {
			f = strings.TrimSpace(f)
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}

	diffed, err := runGit(repoRoot, "diff", "--name-only", baseRef)
	if err != nil {
		return nil, errors.Wrap(err, "diffing against base ref")
	}
	add(diffed)

	staged, err := runGit(repoRoot, "diff", "--name-only", "--cached")
	if err != nil {
		return nil, errors.Wrap(err, "listing staged files")
	}
	add(staged)

	unstaged, err := runGit(repoRoot, "diff", "--name-only")
	if err != nil {
		return nil, errors.Wrap(err, "listing unstaged files")
	}
	add(unstaged)

	untracked, err := runGit(repoRoot, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, errors.Wrap(err, "listing untracked files")
	}
	add(untracked)

	return files, nil
}

func runGit(repoRoot string, args ...string) ([]string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return strings.Split(string(out), "\n"), nil
}

// longestPrefixMatch returns the package whose directory is the longest
// prefix of file's absolute path, or "" if none match.
func longestPrefixMatch(repoRoot string, file string, pg *pkggraph.Graph) string {
	absFile := filepath.Join(repoRoot, file)
	best := ""
	bestLen := -1
	for name, pkg := range pg.Packages {
		rel, err := filepath.Rel(pkg.Dir, absFile)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if len(pkg.Dir) > bestLen {
			bestLen = len(pkg.Dir)
			best = name
		}
	}
	return best
}

// PreviousContent fetches filePath's content as of ref, for diff-aware
// tooling built on top of this detector. Not used by the core
// affected-detection algorithm itself (spec.md §4.10 EXPANSION).
func PreviousContent(repoRoot string, ref string, filePath string) ([]byte, error) {
	cmd := exec.Command("git", "show", ref+":"+filePath)
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get contents of %s at %s", filePath, ref)
	}
	return out, nil
}
