package style

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/source"
)

func parseCSS(t *testing.T, text string) (*Stylesheet, diag.List) {
	t.Helper()
	sec := source.Section{Present: true, Text: text, Start: hcl.Pos{Line: 1, Column: 1, Byte: 0}}
	return Parse("widget.braid", sec)
}

func parseCSSClean(t *testing.T, text string) *Stylesheet {
	t.Helper()
	sheet, diags := parseCSS(t, text)
	require.Empty(t, diags, diags.Error())
	return sheet
}

func TestParseRule(t *testing.T) {
	sheet := parseCSSClean(t, "p.greeting {\n  color: red;\n  margin: 0 auto;\n}\n")
	require.Len(t, sheet.Items, 1)

	rule, ok := sheet.Items[0].(*Rule)
	require.True(t, ok)
	require.Len(t, rule.Selectors, 1)
	assert.Equal(t, "p.greeting", rule.Selectors[0].Text)
	require.Len(t, rule.Decls, 2)
	assert.Equal(t, Declaration{Property: "color", Value: "red", SrcRange: rule.Decls[0].SrcRange}, rule.Decls[0])
	assert.Equal(t, "margin", rule.Decls[1].Property)
	assert.Equal(t, "0 auto", rule.Decls[1].Value)
}

func TestParseSelectorList(t *testing.T) {
	sheet := parseCSSClean(t, ".a, .b > .c,\n.d:hover { color: blue; }")
	rule := sheet.Items[0].(*Rule)
	require.Len(t, rule.Selectors, 3)
	assert.Equal(t, ".a", rule.Selectors[0].Text)
	assert.Equal(t, ".b > .c", rule.Selectors[1].Text)
	assert.Equal(t, ".d:hover", rule.Selectors[2].Text)
}

func TestParseValueEdgeCases(t *testing.T) {
	sheet := parseCSSClean(t, `div { background: url("a;b.png"); font: 12px/1.5 "Fira Sans", sans-serif; width: calc(100% - 2rem) }`)
	rule := sheet.Items[0].(*Rule)
	require.Len(t, rule.Decls, 3)
	assert.Equal(t, `url("a;b.png")`, rule.Decls[0].Value)
	assert.Equal(t, `12px/1.5 "Fira Sans", sans-serif`, rule.Decls[1].Value)
	assert.Equal(t, "calc(100% - 2rem)", rule.Decls[2].Value, "the final declaration needs no semicolon")
}

func TestParseCustomProperty(t *testing.T) {
	sheet := parseCSSClean(t, ":root { --accent: #f90; }")
	rule := sheet.Items[0].(*Rule)
	require.Len(t, rule.Decls, 1)
	assert.Equal(t, "--accent", rule.Decls[0].Property)
}

func TestParseComments(t *testing.T) {
	sheet := parseCSSClean(t, "/* heading */\np { /* inline */ color: red; }")
	rule := sheet.Items[0].(*Rule)
	require.Len(t, rule.Decls, 1)
	assert.Equal(t, "color", rule.Decls[0].Property)
}

func TestParseMedia(t *testing.T) {
	sheet := parseCSSClean(t, "@media (min-width: 600px) {\n  .card { padding: 2rem; }\n  .box { margin: 1rem; }\n}")
	require.Len(t, sheet.Items, 1)

	media, ok := sheet.Items[0].(*AtRule)
	require.True(t, ok)
	assert.Equal(t, "media", media.Name)
	assert.Equal(t, "(min-width: 600px)", media.Params)
	require.Len(t, media.Rules, 2)
	assert.Equal(t, ".card", media.Rules[0].Selectors[0].Text)
	assert.Equal(t, ".box", media.Rules[1].Selectors[0].Text)
}

func TestParseMalformedDeclaration(t *testing.T) {
	sheet, diags := parseCSS(t, "p {\n  color red;\n  margin: 0;\n}")
	require.Len(t, diags, 1)
	d := diags[0]
	assert.Equal(t, diag.CodeInvalidDeclaration, d.Code)
	assert.Contains(t, d.Summary, "malformed declaration")
	assert.Equal(t, 2, d.Subject.Start.Line, "must carry the declaration's line")

	// The parser recovers and keeps the rest of the block.
	rule := sheet.Items[0].(*Rule)
	require.Len(t, rule.Decls, 1)
	assert.Equal(t, "margin", rule.Decls[0].Property)
}

func TestParseInvalidSelector(t *testing.T) {
	t.Run("empty member", func(t *testing.T) {
		_, diags := parseCSS(t, ".a, , .b { color: red; }")
		require.Len(t, diags, 1)
		assert.Equal(t, diag.CodeInvalidSelector, diags[0].Code)
		assert.Contains(t, diags[0].Summary, "empty selector")
	})

	t.Run("unbalanced brackets", func(t *testing.T) {
		_, diags := parseCSS(t, "input[type=text { color: red; }")
		require.NotEmpty(t, diags)
		assert.Equal(t, diag.CodeInvalidSelector, diags[0].Code)
	})

	t.Run("global without parens", func(t *testing.T) {
		_, diags := parseCSS(t, ":global .x { color: red; }")
		require.Len(t, diags, 1)
		assert.Equal(t, diag.CodeInvalidSelector, diags[0].Code)
		assert.Contains(t, diags[0].Detail, ":global")
	})
}

func TestParseUnclosedBlock(t *testing.T) {
	_, diags := parseCSS(t, "p {\n  color: red;\n")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CodeInvalidDeclaration, diags[0].Code)
	assert.Contains(t, diags[0].Summary, "never closed")
}

func TestParseUnsupportedAtRule(t *testing.T) {
	sheet, diags := parseCSS(t, "@import \"theme.css\";\np { color: red; }")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CodeInvalidSelector, diags[0].Code)
	assert.Contains(t, diags[0].Summary, "@import")

	// Recovery keeps the following rule.
	require.Len(t, sheet.Items, 1)
}

func TestParsePositionsAreUnitAbsolute(t *testing.T) {
	unit := &source.Unit{ID: "widget", Path: "widget.braid", Text: "<template><p/></template>\n<style>\np { color: red; }\n</style>\n"}
	secs, diags := source.Split(unit)
	require.Empty(t, diags)

	sheet, diags := Parse(unit.ID, secs.Style)
	require.Empty(t, diags)
	rule := sheet.Items[0].(*Rule)
	assert.Equal(t, 3, rule.SrcRange.Start.Line)
	sel := rule.Selectors[0]
	assert.Equal(t, sel.Text, unit.Text[sel.SrcRange.Start.Byte:sel.SrcRange.End.Byte])
}
