// Package registry is the run-scoped symbol table pass 2 resolves pending
// edges against. It is built exclusively during pass 1 and is read-only for
// the remainder of the run, which is what lets pass 2 fan out across files
// with lookups taking only the shared read lock.
package registry

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/DeusData/codegraph/internal/model"
)

// Entry is one indexed declaration: enough to resolve a textual reference to
// a concrete entity and to break ties between same-named candidates.
type Entry struct {
	ID            string
	Kind          model.EntityKind
	QualifiedName string
	AbsPath       string
	RelPath       string
}

// Registry indexes declarations under several keys simultaneously so pass 2
// can resolve references found in any front-end's idiom (import specifier,
// named export, Angular template filename, class member).
type Registry struct {
	mu sync.RWMutex

	byQualifiedName map[string]*Entry
	bySimpleName    map[string][]*Entry
	byFileExport    map[string]*Entry // key: fileAbsPath + "\x00" + exportedName
	byTemplateKey   map[string]*Entry // key: "template:<filename>" or "template:<abspath>"
	byMember        map[string]*Entry // key: classQualifiedName + "\x00" + memberName

	frozen bool
}

// New returns an empty, writable Registry.
func New() *Registry {
	return &Registry{
		byQualifiedName: make(map[string]*Entry),
		bySimpleName:    make(map[string][]*Entry),
		byFileExport:    make(map[string]*Entry),
		byTemplateKey:   make(map[string]*Entry),
		byMember:        make(map[string]*Entry),
	}
}

// Register indexes one declaration under every key a reference to it might
// use. Safe to call concurrently from different pass-1 workers as long as
// each worker owns a disjoint set of files (end-of-file batched).
func (r *Registry) Register(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("registry: Register called after Freeze")
	}

	r.byQualifiedName[e.QualifiedName] = e

	simple := simpleName(e.QualifiedName)
	r.bySimpleName[simple] = append(r.bySimpleName[simple], e)
}

// RegisterExport additionally indexes e as the named export `name` of its
// declaring file, for JS/TS "import { name } from './file'" resolution.
func (r *Registry) RegisterExport(e *Entry, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFileExport[e.AbsPath+"\x00"+name] = e
}

// RegisterMember additionally indexes e as a member (method/field) of
// classQN, for "this.member"/"self.member" resolution.
func (r *Registry) RegisterMember(e *Entry, classQN, memberName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMember[classQN+"\x00"+memberName] = e
}

// RegisterTemplateKeys indexes a File entity under both its filename and its
// absolute path, for Angular templateUrl/styleUrls resolution.
func (r *Registry) RegisterTemplateKeys(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTemplateKey["template:"+filepath.Base(e.AbsPath)] = e
	r.byTemplateKey["template:"+e.AbsPath] = e
}

// Freeze marks the registry read-only. Called once pass 1 completes, before
// pass 2 workers start reading it concurrently.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup resolves a bare qualified name.
func (r *Registry) Lookup(qualifiedName string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byQualifiedName[qualifiedName]
	return e, ok
}

// LookupExport resolves a named export of a specific file.
func (r *Registry) LookupExport(fileAbsPath, name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byFileExport[fileAbsPath+"\x00"+name]
	return e, ok
}

// LookupMember resolves a member of a specific class.
func (r *Registry) LookupMember(classQN, memberName string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byMember[classQN+"\x00"+memberName]
	return e, ok
}

// LookupTemplate resolves an Angular templateUrl/styleUrls reference by
// filename or absolute path.
func (r *Registry) LookupTemplate(key string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byTemplateKey["template:"+key]
	return e, ok
}

// Resolve finds the best candidate for a textual reference using the import
// map of the referencing module, falling back to same-module, then
// project-wide simple-name resolution with a total-order collision policy:
// same-file, then same-directory, then shortest relative path, then
// lexicographic — so the result never depends on pass-1 scheduling order.
func (r *Registry) Resolve(name, fromModuleQN, fromAbsPath string, importMap map[string]string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parts := strings.SplitN(name, ".", 2)
	prefix := parts[0]
	var suffix string
	if len(parts) > 1 {
		suffix = parts[1]
	}

	if importMap != nil {
		if resolved, ok := importMap[prefix]; ok {
			candidate := resolved
			if suffix != "" {
				candidate = resolved + "." + suffix
			}
			if e, ok := r.byQualifiedName[candidate]; ok {
				return e, true
			}
		}
	}

	if e, ok := r.byQualifiedName[fromModuleQN+"."+name]; ok {
		return e, true
	}

	lookupName := name
	if suffix != "" {
		lookupName = suffix
	}
	candidates := r.bySimpleName[simpleName(lookupName)]
	if len(candidates) == 0 {
		return nil, false
	}
	return pickBest(candidates, fromAbsPath), true
}

func simpleName(qn string) string {
	if idx := strings.LastIndex(qn, "."); idx >= 0 {
		return qn[idx+1:]
	}
	return qn
}

// pickBest applies the collision policy: same-file wins, then same-directory,
// then shortest relative path from fromAbsPath, then lexicographic order on
// the candidate's absolute path. This total order makes resolution
// independent of the order candidates were registered in.
func pickBest(candidates []*Entry, fromAbsPath string) *Entry {
	if len(candidates) == 1 {
		return candidates[0]
	}
	fromDir := filepath.Dir(fromAbsPath)

	sorted := make([]*Entry, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		aSameFile := a.AbsPath == fromAbsPath
		bSameFile := b.AbsPath == fromAbsPath
		if aSameFile != bSameFile {
			return aSameFile
		}
		aSameDir := filepath.Dir(a.AbsPath) == fromDir
		bSameDir := filepath.Dir(b.AbsPath) == fromDir
		if aSameDir != bSameDir {
			return aSameDir
		}
		aRel, _ := filepath.Rel(fromDir, a.AbsPath)
		bRel, _ := filepath.Rel(fromDir, b.AbsPath)
		aLen, bLen := len(filepath.ToSlash(aRel)), len(filepath.ToSlash(bRel))
		if aLen != bLen {
			return aLen < bLen
		}
		return a.AbsPath < b.AbsPath
	})
	return sorted[0]
}
