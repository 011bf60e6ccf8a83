// Package extractor drives the two-pass pipeline over an already-discovered
// file list: run every front-end's pass 1 concurrently, freeze the symbol registry they seeded,
// then resolve pass 1's pending edges concurrently against it. Worker pools
// are errgroup-based and sized to runtime.NumCPU() by default.
package extractor

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codegraph/internal/config"
	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/fqn"
	"github.com/DeusData/codegraph/internal/frontend"
	"github.com/DeusData/codegraph/internal/frontend/decorator"
	"github.com/DeusData/codegraph/internal/frontend/dynamicast"
	"github.com/DeusData/codegraph/internal/frontend/staticasset"
	"github.com/DeusData/codegraph/internal/frontend/treesitter"
	"github.com/DeusData/codegraph/internal/identity"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/model"
	"github.com/DeusData/codegraph/internal/registry"
)

// Extractor owns the front-end set and drives one full (non-incremental)
// run over a discovered file list.
type Extractor struct {
	project   string
	frontEnds map[lang.Language]frontend.FrontEnd
	workers   int
}

// New builds an Extractor wired with every front-end this system ships:
// the table-driven tree-sitter front-end for JS/TS/TSX/Go, the hand-walked
// Python front-end, and the static-asset front-end for HTML/CSS.
func New(project string, workers int) *Extractor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	fes := map[lang.Language]frontend.FrontEnd{}
	register := func(fe frontend.FrontEnd) {
		for _, l := range fe.Languages() {
			fes[l] = fe
		}
	}
	register(treesitter.New())
	register(dynamicast.New())
	register(staticasset.New())

	return &Extractor{project: project, frontEnds: fes, workers: workers}
}

// fileResult is one file's pass-1 contribution, plus the bookkeeping pass 2
// needs: the front-end's import map and the file's path (pending edges only
// carry a module QN, not a path).
type fileResult struct {
	file      discover.FileInfo
	importMap map[string]string
	pending   []*model.PendingEdge
	errs      []frontend.ParseError
}

// Run executes pass 1 over files, then pass 2, and returns the accumulated
// model.Delta. Cancellation is cooperative: each worker checks ctx.Err()
// between files.
func (ex *Extractor) Run(ctx context.Context, files []discover.FileInfo) (*model.Delta, []frontend.ParseError, error) {
	slog.Info("pipeline.start", "project", ex.project, "files", len(files))
	reg := registry.New()

	entities := make([][]*model.Entity, len(files))
	edges := make([][]*model.ResolvedEdge, len(files))
	results := make([]fileResult, len(files))

	t := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fe, ok := ex.frontEnds[f.Language]
			if !ok {
				return nil
			}

			fileEntity, fileID := newFileEntity(ex.project, f)

			parsed, err := fe.ParseFile(gctx, f, ex.project, fileID)
			if err != nil {
				results[i] = fileResult{file: f, errs: []frontend.ParseError{{File: f.Path, Message: err.Error()}}}
				return nil
			}
			if parsed == nil {
				return nil
			}

			mergeFileProperties(fileEntity, parsed.FileProperties)

			localEntities := append([]*model.Entity{fileEntity}, parsed.Entities...)
			templateEdges, decorateEdges, decoratorExternals := decorator.Rekind(localEntities)

			entities[i] = append(localEntities, decoratorExternals...)
			// Rekind runs after the walk that recorded parsed.Contains, so a
			// class rekinded to Component/Service/etc. still has its
			// containment edge computed from the original Kind. Fix that up
			// now that every entity in the file has its final Kind.
			edges[i] = append(fixupContainmentKinds(localEntities, parsed.Contains), decorateEdges...)
			edges[i] = append(edges[i], exportEdges(fileEntity, localEntities, parsed.Exports)...)

			seedRegistry(reg, fileEntity, localEntities, parsed.Exports)

			results[i] = fileResult{
				file:      f,
				importMap: parsed.ImportMap,
				pending:   append(parsed.Pending, templateEdges...),
				errs:      parsed.Errors,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	slog.Info("pass.timing", "pass", "structure", "elapsed", time.Since(t))

	reg.Freeze()

	delta := &model.Delta{}
	var parseErrors []frontend.ParseError
	for i := range files {
		delta.Entities = append(delta.Entities, entities[i]...)
		delta.Edges = append(delta.Edges, edges[i]...)
		parseErrors = append(parseErrors, results[i].errs...)
	}

	t2 := time.Now()
	resolvedEdges, externals, err := ex.resolvePass2(ctx, reg, results)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("pass.timing", "pass", "resolve", "elapsed", time.Since(t2))
	delta.Edges = append(delta.Edges, resolvedEdges...)
	delta.Entities = append(delta.Entities, externals...)

	for _, pe := range parseErrors {
		slog.Warn("pipeline.parse_error", "file", pe.File, "error", pe.Message)
	}
	logEdgeCounts(delta.Edges)
	slog.Info("pipeline.done", "nodes", len(delta.Entities), "edges", len(delta.Edges))

	return delta, parseErrors, nil
}

// logEdgeCounts tallies edges by kind at the end of a run, useful for
// spotting a front-end that stopped producing a relationship kind it used
// to.
func logEdgeCounts(edges []*model.ResolvedEdge) {
	counts := map[model.EdgeKind]int{}
	for _, e := range edges {
		counts[e.Kind]++
	}
	for kind, count := range counts {
		slog.Info("pipeline.edges", "type", kind, "count", count)
	}
}

func (ex *Extractor) resolvePass2(ctx context.Context, reg *registry.Registry, results []fileResult) ([]*model.ResolvedEdge, []*model.Entity, error) {
	resolvedEdges := make([][]*model.ResolvedEdge, len(results))
	resolvedExternals := make([][]*model.Entity, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.workers)

	for i, r := range results {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resolvedEdges[i], resolvedExternals[i] = resolvePendingEdges(reg, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var edges []*model.ResolvedEdge
	seenExternal := map[string]bool{}
	var externals []*model.Entity
	for i := range results {
		edges = append(edges, resolvedEdges[i]...)
		for _, e := range resolvedExternals[i] {
			if !seenExternal[e.ID] {
				seenExternal[e.ID] = true
				externals = append(externals, e)
			}
		}
	}
	return edges, externals, nil
}

// resolvePendingEdges turns one file's pending edges into resolved edges,
// interning an External entity for every target that never resolved
// anywhere in the project — spec invariant: no dangling edges. USES_TEMPLATE/
// USES_STYLES edges are the exception: one whose file is not found is
// dropped, not pointed at an External.
func resolvePendingEdges(reg *registry.Registry, r fileResult) ([]*model.ResolvedEdge, []*model.Entity) {
	var edges []*model.ResolvedEdge
	var externals []*model.Entity

	for _, p := range r.pending {
		if p.Kind == model.EdgeUsesTemplate || p.Kind == model.EdgeUsesStyles {
			if entry, ok := reg.LookupTemplate(p.ResolveTarget); ok {
				edges = append(edges, &model.ResolvedEdge{SourceID: p.SourceID, TargetID: entry.ID, Kind: p.Kind, Properties: p.Properties})
			}
			continue
		}

		entry, ok := reg.Resolve(p.ResolveTarget, p.FromModuleQN, r.file.Path, r.importMap)
		var targetID string
		if ok {
			targetID = entry.ID
		} else {
			targetID = identity.OfExternal(model.KindExternal, p.ResolveTarget)
			externals = append(externals, &model.Entity{
				ID: targetID, Kind: model.KindExternal, Name: p.ResolveTarget, QualifiedName: p.ResolveTarget,
			})
		}
		edges = append(edges, &model.ResolvedEdge{SourceID: p.SourceID, TargetID: targetID, Kind: p.Kind, Properties: p.Properties})
	}
	return edges, externals
}

// fixupContainmentKinds recomputes each Contains edge's Kind from its
// source/target entities' final Kind, after decorator.Rekind has had a
// chance to mutate a class's Kind to Component/Service/Directive/Pipe/
// NgModule. A front-end walk records a containment edge the moment it sees
// the child node, before rekind runs, so the edge's Kind can't be trusted
// until now. A pair the closed containment vocabulary doesn't define (which
// should never happen for entities this pipeline itself produced) is
// dropped with a warning rather than written with a zero-value Kind.
func fixupContainmentKinds(entities []*model.Entity, contains []*model.ResolvedEdge) []*model.ResolvedEdge {
	kindByID := make(map[string]model.EntityKind, len(entities))
	for _, e := range entities {
		kindByID[e.ID] = e.Kind
	}

	fixed := make([]*model.ResolvedEdge, 0, len(contains))
	for _, edge := range contains {
		containerKind, ok := kindByID[edge.SourceID]
		if !ok {
			continue
		}
		childKind, ok := kindByID[edge.TargetID]
		if !ok {
			continue
		}
		kind, ok := model.ContainsEdgeKind(containerKind, childKind)
		if !ok {
			slog.Warn("pipeline.contains_kind_unresolved", "container", containerKind, "child", childKind)
			continue
		}
		edge.Kind = kind
		fixed = append(fixed, edge)
	}
	return fixed
}

// exportEdges emits an EXPORTS edge from the file's module to every
// declared entity whose Name appears in that file's named-export list.
func exportEdges(fileEntity *model.Entity, entities []*model.Entity, exports []string) []*model.ResolvedEdge {
	if len(exports) == 0 {
		return nil
	}
	var moduleID string
	for _, e := range entities {
		if e.Kind == model.KindModule {
			moduleID = e.ID
			break
		}
	}
	if moduleID == "" {
		return nil
	}

	exportSet := make(map[string]bool, len(exports))
	for _, name := range exports {
		exportSet[name] = true
	}

	var edges []*model.ResolvedEdge
	for _, e := range entities {
		if e.ID == moduleID || e == fileEntity {
			continue
		}
		if exportSet[e.Name] {
			edges = append(edges, &model.ResolvedEdge{SourceID: moduleID, TargetID: e.ID, Kind: model.EdgeExports})
		}
	}
	return edges
}

func newFileEntity(project string, f discover.FileInfo) (*model.Entity, string) {
	id := identity.Of(model.KindFile, f.Path, fqn.ModuleQN(project, f.RelPath)+"#file", 0, 0)
	entity := &model.Entity{
		ID: id, Kind: model.KindFile, Name: baseName(f.RelPath),
		QualifiedName: fqn.ModuleQN(project, f.RelPath) + "#file",
		FilePath:      f.Path, RelPath: f.RelPath,
	}
	return entity, id
}

func mergeFileProperties(fileEntity *model.Entity, props map[string]any) {
	if len(props) == 0 {
		return
	}
	if fileEntity.Properties == nil {
		fileEntity.Properties = map[string]any{}
	}
	for k, v := range props {
		fileEntity.Properties[k] = v
	}
}

func baseName(relPath string) string {
	for i := len(relPath) - 1; i >= 0; i-- {
		if relPath[i] == '/' {
			return relPath[i+1:]
		}
	}
	return relPath
}

// seedRegistry registers every entity this file produced under the keys
// pass 2 may need: qualified name always, plus exports/template keys for
// the entities that can be referenced that way.
func seedRegistry(reg *registry.Registry, fileEntity *model.Entity, entities []*model.Entity, exports []string) {
	for _, e := range entities {
		entry := &registry.Entry{ID: e.ID, Kind: e.Kind, QualifiedName: e.QualifiedName, AbsPath: e.FilePath, RelPath: e.RelPath}
		reg.Register(entry)

		if e.Kind == model.KindVariable || e.Kind == model.KindMethod {
			if classQN, memberName, ok := splitMember(e.QualifiedName); ok {
				reg.RegisterMember(entry, classQN, memberName)
			}
		}
	}

	fileEntry := &registry.Entry{ID: fileEntity.ID, Kind: fileEntity.Kind, QualifiedName: fileEntity.QualifiedName, AbsPath: fileEntity.FilePath, RelPath: fileEntity.RelPath}
	reg.RegisterTemplateKeys(fileEntry)

	exportSet := make(map[string]bool, len(exports))
	for _, name := range exports {
		exportSet[name] = true
	}
	if len(exportSet) == 0 {
		return
	}
	for _, e := range entities {
		if exportSet[e.Name] {
			entry := &registry.Entry{ID: e.ID, Kind: e.Kind, QualifiedName: e.QualifiedName, AbsPath: e.FilePath, RelPath: e.RelPath}
			reg.RegisterExport(entry, e.Name)
		}
	}
}

// splitMember divides "pkg.Class.method" into ("pkg.Class", "method").
func splitMember(qualifiedName string) (classQN, member string, ok bool) {
	idx := lastDot(qualifiedName)
	if idx < 0 {
		return "", "", false
	}
	return qualifiedName[:idx], qualifiedName[idx+1:], true
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// DiscoverAndRun runs a fresh Extractor over files the caller has already
// discovered, sorted by RelPath; it does no discovery itself. Used by both the `init`/`update --full` CLI path and by internal/incremental
// for files it classifies as added/modified.
func DiscoverAndRun(ctx context.Context, cfg *config.Config, project string, paths []discover.FileInfo) (*model.Delta, []frontend.ParseError, error) {
	ex := New(project, cfg.Workers)
	return ex.Run(ctx, sortedFiles(paths))
}

func sortedFiles(files []discover.FileInfo) []discover.FileInfo {
	sorted := make([]discover.FileInfo, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelPath < sorted[j].RelPath })
	return sorted
}
