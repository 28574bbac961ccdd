// Package expr parses template expressions and answers the questions the
// analyzer asks about them.
package expr

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// Parse compiles a single expression. start positions the expression
// inside its unit so diagnostics point at the author's file.
func Parse(src, filename string, start hcl.Pos) (hclsyntax.Expression, hcl.Diagnostics) {
	return hclsyntax.ParseExpression([]byte(src), filename, start)
}

// Ref is one name an expression mentions, with the range of its first
// occurrence.
type Ref struct {
	Name     string
	SrcRange hcl.Range
}

// Roots returns the root identifiers the expression reads, deduplicated
// and sorted by name.
func Roots(e hclsyntax.Expression) []Ref {
	seen := map[string]hcl.Range{}
	for _, tr := range e.Variables() {
		if _, ok := seen[tr.RootName()]; !ok {
			seen[tr.RootName()] = tr.SourceRange()
		}
	}
	return sortedRefs(seen)
}

// Calls returns the function names the expression invokes at any nesting
// depth, deduplicated and sorted by name.
func Calls(e hclsyntax.Expression) []Ref {
	seen := map[string]hcl.Range{}
	hclsyntax.Walk(e, enterFunc(func(n hclsyntax.Node) {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok {
			if _, dup := seen[call.Name]; !dup {
				seen[call.Name] = call.NameRange
			}
		}
	}))
	return sortedRefs(seen)
}

type enterFunc func(hclsyntax.Node)

func (f enterFunc) Enter(n hclsyntax.Node) hcl.Diagnostics { f(n); return nil }
func (f enterFunc) Exit(hclsyntax.Node) hcl.Diagnostics    { return nil }

func sortedRefs(m map[string]hcl.Range) []Ref {
	if len(m) == 0 {
		return nil
	}
	out := make([]Ref, 0, len(m))
	for name, rng := range m {
		out = append(out, Ref{Name: name, SrcRange: rng})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
