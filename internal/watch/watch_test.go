package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neex/neex/internal/pkggraph"
	"github.com/neex/neex/internal/workspace"
)

func testPkgGraph(t *testing.T, root string) *pkggraph.Graph {
	t.Helper()
	libDir := filepath.Join(root, "packages", "lib")
	appDir := filepath.Join(root, "packages", "app")
	require.NoError(t, os.MkdirAll(libDir, 0o755))
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	pkgs := map[string]*workspace.Package{
		"lib": {Name: "lib", Dir: libDir},
		"app": {Name: "app", Dir: appDir, InternalDeps: []string{"lib"}},
	}
	return pkggraph.Build(pkgs)
}

func TestIsIgnoredPathFiltersKnownDirectories(t *testing.T) {
	assert.True(t, isIgnoredPath(filepath.Join("repo", "node_modules", "x.js")))
	assert.True(t, isIgnoredPath(filepath.Join("repo", ".git", "HEAD")))
	assert.True(t, isIgnoredPath(filepath.Join("repo", "app", "dist", "out.js")))
	assert.False(t, isIgnoredPath(filepath.Join("repo", "app", "src", "index.ts")))
}

func TestLongestPrefixMatchPicksDeepestPackage(t *testing.T) {
	root := t.TempDir()
	pg := testPkgGraph(t, root)

	file := filepath.Join(root, "packages", "app", "src", "index.ts")
	assert.Equal(t, "app", longestPrefixMatch(file, pg))

	outside := filepath.Join(root, "README.md")
	assert.Equal(t, "", longestPrefixMatch(outside, pg))
}

func TestFireClosesOverTransitiveDependents(t *testing.T) {
	root := t.TempDir()
	pg := testPkgGraph(t, root)

	w, err := New(pg, nil, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	var got [][]string
	done := make(chan struct{}, 1)
	w.OnRebuild = func(packages []string) {
		got = append(got, packages)
		done <- struct{}{}
	}

	w.mu.Lock()
	w.pending["lib"] = true
	w.mu.Unlock()
	w.fire()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnRebuild was not called")
	}

	require.Len(t, got, 1)
	assert.ElementsMatch(t, []string{"lib", "app"}, got[0])
}

func TestFireQueuesExactlyOneRerunWhileRebuilding(t *testing.T) {
	root := t.TempDir()
	pg := testPkgGraph(t, root)

	w, err := New(pg, nil, 5*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	release := make(chan struct{})
	calls := make(chan []string, 10)
	w.OnRebuild = func(packages []string) {
		calls <- packages
		<-release
	}

	w.mu.Lock()
	w.pending["lib"] = true
	w.mu.Unlock()
	go w.fire()

	<-calls // first rebuild is now blocked inside OnRebuild

	w.mu.Lock()
	w.pending["app"] = true
	w.mu.Unlock()
	w.fire() // observes rebuilding=true, queues a rerun instead of running inline

	close(release)

	select {
	case second := <-calls:
		assert.Equal(t, []string{"app"}, second)
	case <-time.After(time.Second):
		t.Fatal("queued rerun never fired")
	}
}

func TestFireWithNoPendingPackagesDoesNotInvokeCallback(t *testing.T) {
	root := t.TempDir()
	pg := testPkgGraph(t, root)

	w, err := New(pg, nil, 5*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	called := false
	w.OnRebuild = func(packages []string) { called = true }

	w.fire()
	assert.False(t, called)
}
