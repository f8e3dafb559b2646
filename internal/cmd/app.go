package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/neex/neex/internal/artifactcache"
	"github.com/neex/neex/internal/config"
	"github.com/neex/neex/internal/hashing"
	"github.com/neex/neex/internal/manifest"
	"github.com/neex/neex/internal/objectstore"
	"github.com/neex/neex/internal/pipeline"
	"github.com/neex/neex/internal/pkggraph"
	"github.com/neex/neex/internal/progress"
	"github.com/neex/neex/internal/remotecache"
	"github.com/neex/neex/internal/runner"
	"github.com/neex/neex/internal/workspace"
)

// App bundles everything a subcommand needs, built once from the resolved
// Config (spec.md §2's components wired together).
type App struct {
	RunID  string
	Colors *progress.ColorCache
	Config *config.Config
	Logger hclog.Logger

	Root       *manifest.Manifest
	Packages   map[string]*workspace.Package
	ProjectGraph *pkggraph.Graph
	graphStore *pkggraph.Store

	Pipeline *pipeline.File
	Cache    *artifactcache.Cache
	Runner   *runner.Runner
	Tracker  *hashing.Tracker
	Hasher   *hashing.FileHasher
}

// NewApp scans the workspace rooted at cfg.RootDir and wires every
// downstream component (Project Graph, Pipeline, Content Store, Artifact
// Cache, Runner) in the order spec.md §2 describes.
func NewApp(cfg *config.Config) (*App, error) {
	runID := uuid.New().String()
	logger := progress.NewLogger(cfg.Verbose, cfg.NoColor).With("runID", runID)

	root, pkgs, err := workspace.Scan(cfg.RootDir)
	if err != nil {
		return nil, err
	}

	neexDir := filepath.Join(cfg.RootDir, ".neex")

	graphStore, err := pkggraph.OpenStore(filepath.Join(neexDir, "project-graph.db"))
	if err != nil {
		return nil, err
	}
	pg, err := graphStore.Load(pkgs)
	if err != nil {
		return nil, err
	}
	if warning := pg.CycleWarning(); warning != "" {
		logger.Warn(warning)
	}

	pipe, found, err := pipeline.Load(cfg.RootDir)
	if err != nil {
		return nil, err
	}
	if !found {
		pipe = pipeline.Synthesize(root.Scripts)
	}

	objDir := filepath.Join(neexDir, "objects")
	store, err := objectstore.New(objDir)
	if err != nil {
		return nil, err
	}

	var remote artifactcache.RemoteCache
	if cfg.RemoteCache != nil {
		remote = remotecache.New(*cfg.RemoteCache)
	}

	cacheDir := cfg.CacheDir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(cfg.RootDir, cacheDir)
	}
	cache, err := artifactcache.New(cacheDir, store, remote, logger)
	if err != nil {
		return nil, err
	}

	tracker := hashing.LoadTracker(filepath.Join(neexDir, "state.json"))
	concurrency := cfg.MaxParallel
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	hasher := hashing.NewFileHasher(tracker, concurrency)

	r := runner.New(cache, logger, nil)

	return &App{
		RunID: runID, Colors: progress.NewColorCache(),
		Config: cfg, Logger: logger,
		Root: root, Packages: pkgs, ProjectGraph: pg, graphStore: graphStore,
		Pipeline: pipe, Cache: cache, Runner: r, Tracker: tracker, Hasher: hasher,
	}, nil
}

// Close releases the App's file handles, flushing any incremental state. It
// keeps going on a failure in one resource so a closed graph store doesn't
// prevent the tracker from flushing, returning every error it hit.
func (a *App) Close() error {
	var result *multierror.Error
	if err := a.Tracker.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("flushing file hash cache: %w", err))
	}
	if a.graphStore != nil {
		if err := a.graphStore.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing project graph store: %w", err))
		}
	}
	return result.ErrorOrNil()
}
