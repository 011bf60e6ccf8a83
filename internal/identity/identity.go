// Package identity computes the deterministic 256-bit entity identity hash.
// Two extraction runs over unchanged source produce byte-identical IDs,
// which is what lets the incremental engine (internal/incremental) leave
// edges into unmodified files untouched across a partial re-index.
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/DeusData/codegraph/internal/model"
	"github.com/zeebo/xxh3"
)

// maxExternalName bounds the human-readable portion of an External entity's
// canonical name before the hash suffix is appended, so a pathologically
// long import specifier can't make two otherwise-distinct names collide
// after truncation.
const maxExternalName = 90

// Of computes the identity hash for a declared entity: kind, absolute file
// path, fully qualified name, and line span, in a fixed, length-prefixed
// order so no separator choice can cause two distinct tuples to serialize
// identically.
func Of(kind model.EntityKind, absPath, qualifiedName string, startLine, endLine int) string {
	h := sha256.New()
	writeField(h, string(kind))
	writeField(h, absPath)
	writeField(h, qualifiedName)
	writeInt(h, startLine)
	writeInt(h, endLine)
	return hex.EncodeToString(h.Sum(nil))
}

// OfExternal computes the identity hash for an unresolved/out-of-tree
// reference, keyed on kind and canonical name alone (no file, no line span —
// an External entity is interned once per distinct name, never per
// occurrence, per the per-name interning decision recorded in DESIGN.md).
func OfExternal(kind model.EntityKind, canonicalName string) string {
	h := sha256.New()
	writeField(h, string(kind))
	writeField(h, cappedExternalName(canonicalName))
	return hex.EncodeToString(h.Sum(nil))
}

// cappedExternalName truncates names over maxExternalName to a prefix plus
// an 8-hex-digit suffix of the xxh3 hash of the full name, keeping the
// result at or under maxExternalName+9 characters while still
// distinguishing two long names that share a common prefix.
func cappedExternalName(name string) string {
	if len(name) <= maxExternalName {
		return name
	}
	sum := xxh3.HashString(name)
	return fmt.Sprintf("%s#%08x", name[:maxExternalName], uint32(sum))
}

func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

func writeInt(h interface{ Write([]byte) (int, error) }, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(int64(n)))
	h.Write(buf[:])
}
