// Package config implements spec.md §6's ambient CLI configuration layer:
// global flags, a `.neexrc` project config file, and environment overrides,
// resolved with precedence flags > env > config file > default.
//
// Grounded on the teacher's internal/config package (the same precedence
// order and the TURBO_LOG_LEVEL-style env var), rebuilt on `spf13/viper`
// instead of the teacher's hand-rolled arg scanner and `envconfig`, per
// SPEC_FULL.md §6's ambient CLI/config stack.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"

	"github.com/neex/neex/internal/remotecache"
)

// EnvPrefix is the prefix viper uses to read environment-variable overrides,
// e.g. NEEX_MAX_PARALLEL, NEEX_STOP_ON_ERROR.
const EnvPrefix = "NEEX"

// FileName is the project-local config file's base name. The file is read
// as JSON, from .neexrc.json or an extensionless .neexrc.
const FileName = ".neexrc"

// Config is the resolved, effective configuration for one invocation.
type Config struct {
	RootDir        string
	MaxParallel    int
	StopOnError    bool
	NoColor        bool
	Verbose        bool
	LogLevel       hclog.Level
	CacheDir       string
	BaseRef        string
	DebounceMillis int
	RemoteCache    *remotecache.Config // nil if remote caching is not configured
}

// IsCI reports whether the process appears to be running in a CI/CD
// environment, matching the teacher's heuristic: no attached TTY, or an
// explicit CI env var.
func IsCI() bool {
	return !isatty.IsTerminal(os.Stdout.Fd()) || os.Getenv("CI") != ""
}

// Load resolves Config for rootDir, reading `.neexrc` if present and
// applying `NEEX_`-prefixed environment overrides, with viper's own flag
// binding left to the caller (internal/cmd binds pflag.FlagSet values before
// calling Load so command-line flags take highest precedence).
func Load(v *viper.Viper, rootDir string) (*Config, error) {
	v.SetConfigName(FileName)
	v.SetConfigType("json")
	v.AddConfigPath(rootDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("max-parallel", runtime.NumCPU())
	v.SetDefault("stop-on-error", false)
	v.SetDefault("no-color", false)
	v.SetDefault("verbose", false)
	v.SetDefault("cache-dir", ".neex/cache")
	v.SetDefault("debounce-millis", 300)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading %s: %w", FileName, err)
		}
	}

	level := hclog.Info
	if v.GetBool("verbose") {
		level = hclog.Debug
	}
	if raw := v.GetString("log-level"); raw != "" {
		if parsed := hclog.LevelFromString(raw); parsed != hclog.NoLevel {
			level = parsed
		}
	}

	cfg := &Config{
		RootDir:        rootDir,
		MaxParallel:    v.GetInt("max-parallel"),
		StopOnError:    v.GetBool("stop-on-error"),
		NoColor:        v.GetBool("no-color"),
		Verbose:        v.GetBool("verbose"),
		LogLevel:       level,
		CacheDir:       v.GetString("cache-dir"),
		BaseRef:        v.GetString("base-ref"),
		DebounceMillis: v.GetInt("debounce-millis"),
	}

	if v.GetString("remote-cache.endpoint") != "" {
		cfg.RemoteCache = &remotecache.Config{
			Provider:  v.GetString("remote-cache.provider"),
			Endpoint:  v.GetString("remote-cache.endpoint"),
			Bucket:    v.GetString("remote-cache.bucket"),
			AccessKey: v.GetString("remote-cache.access-key"),
			SecretKey: v.GetString("remote-cache.secret-key"),
			Region:    v.GetString("remote-cache.region"),
		}
	}

	if persisted, err := ReadRemoteCacheFile(rootDir); err == nil && persisted != nil && cfg.RemoteCache == nil {
		cfg.RemoteCache = persisted
	}

	return cfg, nil
}
