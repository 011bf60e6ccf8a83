// Package discover walks a source tree and reports the files front-ends
// should parse, applying the ignore rules, size cap, symlink policy, and
// include/exclude globs from internal/config.
package discover

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/DeusData/codegraph/internal/config"
	"github.com/DeusData/codegraph/internal/lang"
)

// ignorePatterns are directory names skipped during discovery regardless of
// configured globs.
var ignorePatterns = map[string]bool{
	".cache": true, ".eggs": true, ".env": true, ".git": true,
	".gradle": true, ".hg": true, ".idea": true, ".mypy_cache": true,
	".nox": true, ".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".pytest_cache": true, ".ruff_cache": true, ".svn": true, ".tox": true,
	".venv": true, ".vs": true, ".vscode": true, ".yarn": true,
	"__pycache__": true, "bower_components": true, "build": true,
	"coverage": true, "dist": true, "env": true, "htmlcov": true,
	"node_modules": true, "obj": true, "out": true, "site-packages": true,
	"target": true, "tmp": true, "vendor": true, "venv": true,
}

// ignoreSuffixes are file suffixes skipped during discovery.
var ignoreSuffixes = []string{".tmp", "~", ".pyc", ".pyo", ".o", ".a", ".so", ".dll", ".class"}

// FileInfo describes one discovered source file.
type FileInfo struct {
	Path     string // absolute path
	RelPath  string // slash-separated, relative to the tracked root
	Language lang.Language
	Size     int64
}

// Options configures one Discover call; zero value uses built-in defaults.
type Options struct {
	IncludeGlobs   []string
	ExcludeGlobs   []string
	MaxFileBytes   int64
	FollowSymlinks bool
	IgnoreFile     string
}

// FromConfig builds discover Options from a loaded config.Config.
func FromConfig(cfg *config.Config) *Options {
	return &Options{
		IncludeGlobs:   cfg.IncludeGlobs,
		ExcludeGlobs:   cfg.ExcludeGlobs,
		MaxFileBytes:   cfg.MaxFileBytes,
		FollowSymlinks: cfg.FollowSymlinks,
		IgnoreFile:     cfg.IgnoreFile,
	}
}

func shouldSkipDir(name, rel string, excludeGlobs []string) bool {
	if ignorePatterns[name] {
		return true
	}
	for _, pattern := range excludeGlobs {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func matchesAny(globs []string, candidates ...string) bool {
	for _, pattern := range globs {
		for _, c := range candidates {
			if matched, _ := filepath.Match(pattern, c); matched {
				return true
			}
		}
	}
	return false
}

// Discover walks rootPath and returns every recognized source file, honoring
// ctx cancellation between directory entries (the discovery half of the
// cooperative cancellation this system applies across discovery and
// parsing).
func Discover(ctx context.Context, rootPath string, opts *Options) ([]FileInfo, error) {
	if opts == nil {
		opts = &Options{}
	}
	maxBytes := opts.MaxFileBytes
	if maxBytes == 0 {
		maxBytes = config.DefaultMaxFileBytes
	}

	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extraIgnore := opts.ExcludeGlobs
	ignPath := opts.IgnoreFile
	if ignPath == "" {
		ignPath = filepath.Join(rootPath, ".codegraphignore")
	} else if !filepath.IsAbs(ignPath) {
		ignPath = filepath.Join(rootPath, ignPath)
	}
	if patterns, loadErr := loadIgnoreFile(ignPath); loadErr == nil {
		extraIgnore = append(extraIgnore, patterns...)
	}

	var files []FileInfo

	walkFn := func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(rootPath, path)
		rel = filepath.ToSlash(rel)

		if info.Mode()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			resolved, statErr := os.Stat(path)
			if statErr != nil {
				return nil
			}
			info = resolved
		}

		if info.IsDir() {
			if shouldSkipDir(info.Name(), rel, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}

		if len(opts.IncludeGlobs) > 0 && !matchesAny(opts.IncludeGlobs, info.Name(), rel) {
			return nil
		}
		if matchesAny(extraIgnore, info.Name(), rel) {
			return nil
		}
		for _, suffix := range ignoreSuffixes {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}
		if info.Size() > maxBytes {
			return nil
		}

		ext := filepath.Ext(path)
		l, ok := lang.LanguageForExtension(ext)
		if !ok {
			return nil
		}
		files = append(files, FileInfo{
			Path:     path,
			RelPath:  rel,
			Language: l,
			Size:     info.Size(),
		})
		return nil
	}

	err = filepath.Walk(rootPath, walkFn)
	return files, err
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
