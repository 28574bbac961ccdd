package render

import (
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Filters returns the registry of functions available to template
// expressions. A pipe filter is a one-argument call into this registry;
// the same names are also callable directly inside expressions. The
// registry is a pure, deterministic subset of the cty standard library.
func Filters() map[string]function.Function {
	return map[string]function.Function{
		"upper":   stdlib.UpperFunc,
		"lower":   stdlib.LowerFunc,
		"title":   stdlib.TitleFunc,
		"trim":    stdlib.TrimSpaceFunc,
		"reverse": stdlib.ReverseFunc,
		"strlen":  stdlib.StrlenFunc,
		"length":  stdlib.LengthFunc,
		"substr":  stdlib.SubstrFunc,
		"join":    stdlib.JoinFunc,
		"format":  stdlib.FormatFunc,
		"json":    stdlib.JSONEncodeFunc,
	}
}
