// Package incremental classifies a tracked tree's files as added, modified,
// deleted, or unchanged since the last run and reconciles the store with
// only the files that actually changed, instead of re-running the full
// extractor driver. Content hashing uses crypto/sha256; file classification
// and hash updates run errgroup-parallel over the tracked root, while
// dependent-file rediscovery walks the unchanged files one by one.
package incremental

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codegraph/internal/config"
	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/extractor"
	"github.com/DeusData/codegraph/internal/fqn"
	"github.com/DeusData/codegraph/internal/frontend"
	"github.com/DeusData/codegraph/internal/model"
	"github.com/DeusData/codegraph/internal/store"
)

// projectName is the fixed namespace prefix fed to internal/fqn's
// project-qualified-name builder. This system tracks one root path per
// store, so a constant keeps qualified names stable across runs.
const projectName = "root"

// Result summarizes one incremental run.
type Result struct {
	Added       int
	Modified    int
	Deleted     int
	Unchanged   int
	Report      *store.Report
	ParseErrors []frontend.ParseError
}

// Run reconciles s with the current contents of cfg.RootPath. When full is
// true, the store is reset and every discovered file is (re-)extracted,
// skipping the hash-based classification entirely — this is the `update
// --full` path and the one used by `init`.
func Run(ctx context.Context, cfg *config.Config, s *store.Store, full bool) (*Result, error) {
	files, err := discover.Discover(ctx, cfg.RootPath, discover.FromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("incremental: discover: %w", err)
	}

	if full {
		if err := s.Reset(); err != nil {
			return nil, fmt.Errorf("incremental: reset: %w", err)
		}
		return runFull(ctx, cfg, s, files)
	}

	storedHashes, err := s.GetFileHashes()
	if err != nil {
		return nil, fmt.Errorf("incremental: get file hashes: %w", err)
	}
	if len(storedHashes) == 0 {
		return runFull(ctx, cfg, s, files)
	}

	added, modified, unchanged, err := classifyFiles(files, storedHashes)
	if err != nil {
		return nil, fmt.Errorf("incremental: classify: %w", err)
	}
	deleted := findDeletedFiles(files, storedHashes)
	slog.Info("incremental.classify", "added", len(added), "modified", len(modified),
		"deleted", len(deleted), "unchanged", len(unchanged))

	changed := mergeFiles(added, modified)
	dependents, err := findDependentFiles(s, changed, unchanged)
	if err != nil {
		return nil, fmt.Errorf("incremental: find dependents: %w", err)
	}
	toReprocess := mergeFiles(changed, dependents)

	// A modified file's declarations can shift line ranges, which changes
	// their identity hashes — retract its prior contribution before the
	// fresh extraction re-adds it, the same way a deleted file's is
	// retracted, so a renamed/moved symbol doesn't leave its old row behind.
	var retract []string
	retract = append(retract, deleted...)
	for _, f := range changed {
		retract = append(retract, f.RelPath)
	}

	delta := &model.Delta{RemovedRelPaths: retract}
	var parseErrors []frontend.ParseError
	if len(toReprocess) > 0 {
		d, errs, err := extractor.DiscoverAndRun(ctx, cfg, projectName, toReprocess)
		if err != nil {
			return nil, fmt.Errorf("incremental: extract: %w", err)
		}
		delta.Entities = d.Entities
		delta.Edges = d.Edges
		parseErrors = errs
	}

	report, err := s.Apply(ctx, delta, cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("incremental: apply: %w", err)
	}
	if removed, err := s.DeleteOrphanedExternals(); err != nil {
		slog.Warn("incremental.gc_externals_failed", "error", err)
	} else if removed > 0 {
		slog.Info("incremental.gc_externals", "removed", removed)
	}

	for _, relPath := range deleted {
		if err := s.DeleteFileHash(relPath); err != nil {
			slog.Warn("incremental.delete_hash_failed", "file", relPath, "error", err)
		}
	}
	if err := updateFileHashes(s, toReprocess, cfg.Workers); err != nil {
		return nil, fmt.Errorf("incremental: update hashes: %w", err)
	}
	if err := s.SetMeta(cfg.RootPath); err != nil {
		return nil, fmt.Errorf("incremental: set meta: %w", err)
	}

	slog.Info("incremental.run", "added", len(added), "modified", len(modified),
		"deleted", len(deleted), "unchanged", len(unchanged), "reprocessed", len(toReprocess))

	return &Result{
		Added: len(added), Modified: len(modified), Deleted: len(deleted),
		Unchanged: len(unchanged), Report: report, ParseErrors: parseErrors,
	}, nil
}

func runFull(ctx context.Context, cfg *config.Config, s *store.Store, files []discover.FileInfo) (*Result, error) {
	delta, parseErrors, err := extractor.DiscoverAndRun(ctx, cfg, projectName, files)
	if err != nil {
		return nil, fmt.Errorf("incremental: full extract: %w", err)
	}

	report, err := s.Apply(ctx, delta, cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("incremental: full apply: %w", err)
	}
	if removed, err := s.DeleteOrphanedExternals(); err != nil {
		slog.Warn("incremental.gc_externals_failed", "error", err)
	} else if removed > 0 {
		slog.Info("incremental.gc_externals", "removed", removed)
	}

	if err := updateFileHashes(s, files, cfg.Workers); err != nil {
		return nil, fmt.Errorf("incremental: full update hashes: %w", err)
	}
	if err := s.SetMeta(cfg.RootPath); err != nil {
		return nil, fmt.Errorf("incremental: full set meta: %w", err)
	}

	slog.Info("incremental.full_run", "files", len(files), "nodes", report.NodesWritten, "edges", report.EdgesWritten)

	return &Result{Added: len(files), Report: report, ParseErrors: parseErrors}, nil
}

// classifyFiles splits the discovered tree into added, modified, and
// unchanged files by comparing each file's current content hash against the
// hash stored from the last run. Hashing is parallelized across cores.
func classifyFiles(files []discover.FileInfo, storedHashes map[string]string) (added, modified, unchanged []discover.FileInfo, err error) {
	type hashResult struct {
		hash string
		err  error
	}

	results := make([]hashResult, len(files))
	workers := runtime.NumCPU()
	if workers > len(files) {
		workers = len(files)
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			hash, hashErr := contentHash(f.Path)
			results[i] = hashResult{hash: hash, err: hashErr}
			return nil
		})
	}
	_ = g.Wait()

	for i, f := range files {
		r := results[i]
		if r.err != nil {
			modified = append(modified, f)
			continue
		}
		stored, tracked := storedHashes[f.RelPath]
		switch {
		case !tracked:
			added = append(added, f)
		case stored == r.hash:
			unchanged = append(unchanged, f)
		default:
			modified = append(modified, f)
		}
	}
	return added, modified, unchanged, nil
}

// findDeletedFiles returns every previously tracked rel path absent from
// the current discovery result.
func findDeletedFiles(files []discover.FileInfo, storedHashes map[string]string) []string {
	current := make(map[string]bool, len(files))
	for _, f := range files {
		current[f.RelPath] = true
	}
	var deleted []string
	for relPath := range storedHashes {
		if !current[relPath] {
			deleted = append(deleted, relPath)
		}
	}
	return deleted
}

// findDependentFiles returns unchanged files that import a module changed
// in this run, so their pending edges get a chance to re-resolve against
// entities that may have moved or disappeared. Import maps are reconstructed
// from stored IMPORTS edges since pass 1's in-memory import maps don't
// survive between incremental runs.
func findDependentFiles(s *store.Store, changed, unchanged []discover.FileInfo) ([]discover.FileInfo, error) {
	changedModules := make(map[string]bool, len(changed))
	for _, f := range changed {
		changedModules[fqn.ModuleQN(projectName, f.RelPath)] = true
		if dir := filepath.Dir(f.RelPath); dir != "." {
			changedModules[fqn.FolderQN(projectName, dir)] = true
		}
	}
	if len(changedModules) == 0 {
		return nil, nil
	}

	var dependents []discover.FileInfo
	for _, f := range unchanged {
		importMap, err := loadImportMap(s, fqn.ModuleQN(projectName, f.RelPath))
		if err != nil {
			return nil, err
		}
		for _, targetQN := range importMap {
			if changedModules[targetQN] {
				dependents = append(dependents, f)
				break
			}
		}
	}
	return dependents, nil
}

func loadImportMap(s *store.Store, moduleQN string) (map[string]string, error) {
	moduleNode, err := s.FindNodeByQN(moduleQN)
	if err != nil {
		return nil, err
	}
	if moduleNode == nil {
		return nil, nil
	}
	edges, err := s.FindEdgesBySourceAndKind(moduleNode.ID, model.EdgeImports)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(edges))
	for _, e := range edges {
		target, err := s.FindNodeByID(e.TargetID)
		if err != nil || target == nil {
			continue
		}
		if alias, ok := e.Properties["alias"].(string); ok && alias != "" {
			result[alias] = target.QualifiedName
		}
	}
	return result, nil
}

// updateFileHashes recomputes and stores the content hash of every file in
// files. Hashing is parallelized across cores; the batch upsert is a single
// transaction.
func updateFileHashes(s *store.Store, files []discover.FileInfo, workers int) error {
	if len(files) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	type hashResult struct {
		hash string
		err  error
	}
	results := make([]hashResult, len(files))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			hash, hashErr := contentHash(f.Path)
			results[i] = hashResult{hash: hash, err: hashErr}
			return nil
		})
	}
	_ = g.Wait()

	batch := make(map[string]string, len(files))
	for i, f := range files {
		if results[i].err == nil {
			batch[f.RelPath] = results[i].hash
		}
	}
	return s.UpsertFileHashBatch(batch)
}

// mergeFiles returns the union of a and b, deduped by RelPath.
func mergeFiles(a, b []discover.FileInfo) []discover.FileInfo {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]discover.FileInfo, 0, len(a)+len(b))
	for _, f := range a {
		if !seen[f.RelPath] {
			seen[f.RelPath] = true
			out = append(out, f)
		}
	}
	for _, f := range b {
		if !seen[f.RelPath] {
			seen[f.RelPath] = true
			out = append(out, f)
		}
	}
	return out
}

// contentHash returns the hex-encoded SHA-256 digest of a file's contents.
func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
