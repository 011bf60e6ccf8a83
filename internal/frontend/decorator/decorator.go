// Package decorator rekinds Angular-style classes after pass 1 extraction:
// a class carrying @Component/@Injectable/@Directive/@Pipe/@NgModule is
// rekinded in place, and its templateUrl/styleUrls arguments become pending
// template/style edges. Other decorator arguments (selector, providedIn,
// inline template/styles) are not lifted into properties. Built on the same decorator-string
// tokenizing and extraction approach used elsewhere in this codebase for
// pulling arguments out of a decorator call expression.
package decorator

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/DeusData/codegraph/internal/identity"
	"github.com/DeusData/codegraph/internal/model"
)

var frameworkKinds = map[string]model.EntityKind{
	"Component": model.KindComponent,
	"Injectable": model.KindService,
	"Directive": model.KindDirective,
	"Pipe":      model.KindPipe,
	"NgModule":  model.KindNgModule,
}

var (
	templateURLRe = regexp.MustCompile(`templateUrl\s*:\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)
	styleURLsRe   = regexp.MustCompile(`styleUrls\s*:\s*\[([^\]]*)\]`)
	quotedRe      = regexp.MustCompile(`['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)
)

// Rekind scans class entities for decorators. A framework decorator
// (@Component, @Injectable, @Directive, @Pipe, @NgModule) rewrites the
// entity's Kind to the matching framework kind and, for @Component/
// @Directive metadata carrying templateUrl/styleUrls, produces
// USES_TEMPLATE/USES_STYLES pending edges resolved by absolute path rather
// than qualified name, since a template file has no symbol of its own to
// register under. Every decorator, framework or not, is also interned as an
// External entity and wired to its class with a DECORATES edge — decorator
// names are syntactic, not declarations this pipeline ever registers, so
// there's no registry lookup to resolve them against.
func Rekind(entities []*model.Entity) ([]*model.PendingEdge, []*model.ResolvedEdge, []*model.Entity) {
	var pending []*model.PendingEdge
	var decorates []*model.ResolvedEdge
	var externals []*model.Entity
	seen := map[string]bool{}

	for _, e := range entities {
		if e.Kind != model.KindClass {
			continue
		}
		decs, _ := e.Properties["decorators"].([]string)
		for _, dec := range decs {
			name := decoratorName(dec)
			if name == "" {
				continue
			}

			externalID := identity.OfExternal(model.KindExternal, name)
			if !seen[externalID] {
				seen[externalID] = true
				externals = append(externals, &model.Entity{
					ID: externalID, Kind: model.KindExternal, Name: name, QualifiedName: name,
				})
			}
			decorates = append(decorates, &model.ResolvedEdge{SourceID: externalID, TargetID: e.ID, Kind: model.EdgeDecorates})

			fk, ok := frameworkKinds[name]
			if !ok {
				continue
			}
			e.Kind = fk
			pending = append(pending, templateEdges(e, dec)...)
		}
	}
	return pending, decorates, externals
}

func decoratorName(dec string) string {
	dec = strings.TrimSpace(dec)
	if idx := strings.Index(dec, "("); idx > 0 {
		dec = dec[:idx]
	}
	return strings.TrimSpace(dec)
}

func templateEdges(e *model.Entity, dec string) []*model.PendingEdge {
	dir := filepath.Dir(e.FilePath)
	var edges []*model.PendingEdge

	if m := templateURLRe.FindStringSubmatch(dec); m != nil {
		edges = append(edges, &model.PendingEdge{
			SourceID:      e.ID,
			Kind:          model.EdgeUsesTemplate,
			ResolveTarget: filepath.Clean(filepath.Join(dir, m[1])),
			FromModuleQN:  e.QualifiedName,
		})
	}
	if m := styleURLsRe.FindStringSubmatch(dec); m != nil {
		for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
			edges = append(edges, &model.PendingEdge{
				SourceID:      e.ID,
				Kind:          model.EdgeUsesStyles,
				ResolveTarget: filepath.Clean(filepath.Join(dir, q[1])),
				FromModuleQN:  e.QualifiedName,
			})
		}
	}
	return edges
}
