// Package config loads the single configuration struct every other package
// is constructed from, in place of scattered ad hoc Options structs built at
// each call site.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is read once per CLI invocation from codegraph.yaml at the tracked
// root (if present) and overlaid with environment overrides.
type Config struct {
	// RootPath is the directory tree to extract from.
	RootPath string `yaml:"root_path"`
	// StorePath is the SQLite database file backing the graph store.
	StorePath string `yaml:"store_path"`

	// IncludeGlobs, if non-empty, restricts discovery to matching relative
	// paths (on top of the built-in ignore rules).
	IncludeGlobs []string `yaml:"include_globs"`
	// ExcludeGlobs are matched in addition to the built-in ignore rules.
	ExcludeGlobs []string `yaml:"exclude_globs"`
	// MaxFileBytes skips files larger than this size. 0 uses DefaultMaxFileBytes.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
	// FollowSymlinks controls whether directory symlinks are traversed.
	FollowSymlinks bool `yaml:"follow_symlinks"`
	// IgnoreFile names an extra ignore-pattern file, relative to RootPath.
	IgnoreFile string `yaml:"ignore_file"`

	// BatchSize bounds how many rows one store transaction upserts at once.
	BatchSize int `yaml:"batch_size"`
	// QueryTimeoutSeconds is loaded with its default and overrides, but the
	// query path does not read it: cypher.Executor applies its own fixed
	// 30-second default timeout.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds"`

	// Workers caps the pass 1/pass 2 worker pool size. 0 uses runtime.NumCPU().
	Workers int `yaml:"workers"`
}

// DefaultMaxFileBytes is applied when MaxFileBytes is unset: a 1 MiB file
// size cap.
const DefaultMaxFileBytes = 1 << 20

// DefaultBatchSize is the store adapter's default upsert batch size.
const DefaultBatchSize = 1000

// DefaultQueryTimeoutSeconds is the query surface's default timeout.
const DefaultQueryTimeoutSeconds = 30

// ConfigFileName is the conventional config file name at a tracked root.
const ConfigFileName = "codegraph.yaml"

// Load reads ConfigFileName under rootPath if present, applies defaults for
// anything left zero, and overlays CODEGRAPH_STORE_PATH/CODEGRAPH_WORKERS
// environment overrides.
func Load(rootPath string) (*Config, error) {
	cfg := &Config{RootPath: rootPath}

	cfgPath := rootPath + string(os.PathSeparator) + ConfigFileName
	if data, err := os.ReadFile(cfgPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", cfgPath, err)
	}

	cfg.RootPath = rootPath
	if cfg.StorePath == "" {
		cfg.StorePath = rootPath + string(os.PathSeparator) + ".codegraph.db"
	}
	if cfg.MaxFileBytes == 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.QueryTimeoutSeconds == 0 {
		cfg.QueryTimeoutSeconds = DefaultQueryTimeoutSeconds
	}

	if v := os.Getenv("CODEGRAPH_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("CODEGRAPH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	return cfg, nil
}
