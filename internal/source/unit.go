// Package source models component source units and splits their raw text
// into the three top-level sections (logic, template, style) that the rest
// of the pipeline consumes. Splitting is a pure function of the unit text;
// it never touches the file system.
package source

import (
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// Ext is the file extension of a component unit.
const Ext = ".braid"

// Unit is one component definition: a stable identity plus its raw text.
// The ID is the slash-separated path relative to the project source root and
// is the identity every diagnostic, cache entry, and scope token keys on.
type Unit struct {
	ID   string
	Path string
	Text string
}

// Section is one raw segment of a unit. Start is the position of the first
// content byte after the opening marker, so section parsers report positions
// in whole-unit coordinates.
type Section struct {
	Present bool
	Text    string
	Start   hcl.Pos
}

// Sections holds the three disjoint segments produced by Split. A section
// the unit does not declare has Present == false and empty text.
type Sections struct {
	Logic    Section
	Template Section
	Style    Section
}

// ResolveImport resolves an import's from path to a unit ID. Unit IDs are
// slash separated regardless of host OS, so this is pure path math: a
// leading slash anchors at the source root, anything else is relative to
// the importing unit's directory. The result may name a unit that does
// not exist, or may still begin with "../" when the path escapes the
// root; callers decide what either of those means.
func ResolveImport(importerID, from string) string {
	if strings.HasPrefix(from, "/") {
		return path.Clean(from[1:])
	}
	return path.Join(path.Dir(importerID), from)
}
