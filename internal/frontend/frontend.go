// Package frontend defines the common shape every language front-end
// produces: a flat list of entities discovered in one file plus the
// pending edges those entities want resolved against the symbol registry
// in pass 2.
package frontend

import (
	"context"

	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/lang"
	"github.com/DeusData/codegraph/internal/model"
)

// ParseError is a recoverable per-file failure: the file is skipped but the
// run continues rather than aborting the whole extraction.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e ParseError) Error() string { return e.File + ": " + e.Message }

// ParseResult is everything one file contributes to pass 1.
type ParseResult struct {
	Entities []*model.Entity
	// Contains holds structural CONTAINS edges whose endpoints are both
	// declared in this same file, so they need no pass-2 resolution.
	Contains []*model.ResolvedEdge
	Pending  []*model.PendingEdge
	Errors   []ParseError

	// ImportMap is local-name -> resolved specifier, used by pass 2 when
	// resolving this file's pending edges.
	ImportMap map[string]string
	// Exports lists names this file's module entity exports, so the
	// registry can be seeded with (file, exportedName) keys.
	Exports []string
	// FileProperties is merged onto the caller's File entity for the
	// front-end (like staticasset) that has no declaration of its own to
	// attach properties to.
	FileProperties map[string]any
}

// FrontEnd parses files of the languages it declares into a ParseResult.
// fileID is the caller-computed identity of the File entity already created
// for f, so the front-end can wire its top-level declarations (or, for
// static-asset front-ends, the file itself) back to it without recomputing
// the file's identity hash a second time.
type FrontEnd interface {
	Languages() []lang.Language
	ParseFile(ctx context.Context, f discover.FileInfo, project string, fileID string) (*ParseResult, error)
}
