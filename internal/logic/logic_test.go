package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/source"
)

func parse(t *testing.T, text string) (*Logic, diag.List) {
	t.Helper()
	sections, splitDiags := source.Split(&source.Unit{ID: "widget", Path: "widget.braid", Text: "<logic>" + text + "</logic>"})
	require.False(t, splitDiags.HasErrors())
	return Parse("widget", sections.Logic)
}

func parseClean(t *testing.T, text string) *Logic {
	t.Helper()
	lg, diags := parse(t, text)
	require.Empty(t, diags)
	return lg
}

func TestParseFullLogic(t *testing.T) {
	lg := parseClean(t, `
prop "name" {
  type = "string"
}

prop "count" {
  type    = "number"
  default = 0
}

state "open" {
  initial = false
}

method "toggle" {}

import "Card" {
  from = "./card.braid"
}
`)

	require.Len(t, lg.Props, 2)
	name := lg.Props[0]
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, cty.String, name.Type)
	assert.True(t, name.Required)
	assert.Nil(t, name.Default)

	count := lg.Props[1]
	assert.Equal(t, "count", count.Name)
	assert.Equal(t, cty.Number, count.Type)
	assert.False(t, count.Required)
	require.NotNil(t, count.Default)
	assert.True(t, count.Default.RawEquals(cty.Zero))

	require.Len(t, lg.States, 1)
	assert.Equal(t, "open", lg.States[0].Name)
	assert.True(t, lg.States[0].Initial.RawEquals(cty.False))

	require.Len(t, lg.Methods, 1)
	assert.Equal(t, "toggle", lg.Methods[0].Name)

	require.Len(t, lg.Imports, 1)
	assert.Equal(t, "Card", lg.Imports[0].Name)
	assert.Equal(t, "./card.braid", lg.Imports[0].From)
}

func TestParseEmptySection(t *testing.T) {
	lg, diags := Parse("widget", source.Section{})
	assert.Empty(t, diags)
	assert.Empty(t, lg.Props)

	lg, diags = parse(t, "\n\n  \n")
	assert.Empty(t, diags)
	assert.Empty(t, lg.Props)
}

func TestParsePositionsAreUnitAbsolute(t *testing.T) {
	unit := &source.Unit{ID: "widget", Path: "widget.braid", Text: "<template><p>hi</p></template>\n<logic>\nprop \"name\" {\n  type = \"string\"\n}\n</logic>\n"}
	sections, splitDiags := source.Split(unit)
	require.False(t, splitDiags.HasErrors())

	lg, diags := Parse("widget", sections.Logic)
	require.Empty(t, diags)
	require.Len(t, lg.Props, 1)
	assert.Equal(t, 3, lg.Props[0].DeclRange.Start.Line)
	assert.Equal(t, "widget", lg.Props[0].DeclRange.Filename)
}

func TestParseDuplicateDeclaration(t *testing.T) {
	lg, diags := parse(t, `
prop "open" {
  type = "bool"
}

state "open" {
  initial = false
}
`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, diag.CodeInvalidLogic, diags[0].Code)
	assert.Contains(t, diags[0].Summary, `duplicate declaration of "open"`)
	assert.Len(t, lg.Props, 1)
	assert.Empty(t, lg.States)
}

func TestParseDefaultMustMatchType(t *testing.T) {
	lg, diags := parse(t, `
prop "count" {
  type    = "number"
  default = true
}
`)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags[0].Summary, `default of prop "count" is not number`)
	assert.Empty(t, lg.Props)
}

func TestParseNullDefaultLeavesPropRequired(t *testing.T) {
	lg := parseClean(t, `
prop "label" {
  type    = "string"
  default = null
}
`)
	require.Len(t, lg.Props, 1)
	assert.True(t, lg.Props[0].Required)
	assert.Nil(t, lg.Props[0].Default)
}

func TestParseTypeNames(t *testing.T) {
	lg := parseClean(t, `
prop "a" {
  type = "list"
}

prop "b" {
  type = "map"
}

prop "c" {
  type = "any"
}
`)
	require.Len(t, lg.Props, 3)
	assert.True(t, lg.Props[0].Type.IsListType())
	assert.True(t, lg.Props[1].Type.IsMapType())
	assert.Equal(t, cty.DynamicPseudoType, lg.Props[2].Type)
}

func TestParseUnknownType(t *testing.T) {
	_, diags := parse(t, `
prop "name" {
  type = "text"
}
`)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags[0].Summary, `unknown type "text"`)
}

func TestParseDefaultCannotReferenceVariables(t *testing.T) {
	_, diags := parse(t, `
prop "name" {
  type    = "string"
  default = other
}
`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, diag.CodeInvalidLogic, diags[0].Code)
	assert.Contains(t, diags[0].Summary, `default of prop "name"`)
}

func TestParseImportValidation(t *testing.T) {
	t.Run("lowercase name", func(t *testing.T) {
		_, diags := parse(t, `
import "card" {
  from = "./card.braid"
}
`)
		require.True(t, diags.HasErrors())
		assert.Contains(t, diags[0].Summary, `import name "card" must be capitalized`)
	})

	t.Run("wrong extension", func(t *testing.T) {
		_, diags := parse(t, `
import "Card" {
  from = "./card.html"
}
`)
		require.True(t, diags.HasErrors())
		assert.Contains(t, diags[0].Summary, ".braid")
	})

	t.Run("duplicate", func(t *testing.T) {
		lg, diags := parse(t, `
import "Card" {
  from = "./card.braid"
}

import "Card" {
  from = "./other.braid"
}
`)
		require.True(t, diags.HasErrors())
		assert.Contains(t, diags[0].Summary, `duplicate import "Card"`)
		require.Len(t, lg.Imports, 1)
		assert.Equal(t, "./card.braid", lg.Imports[0].From)
	})
}

func TestParseRejectsUnknownBlocksAndArguments(t *testing.T) {
	t.Run("unknown block", func(t *testing.T) {
		_, diags := parse(t, `
widget "x" {
}
`)
		require.True(t, diags.HasErrors())
		assert.Equal(t, diag.CodeInvalidLogic, diags[0].Code)
	})

	t.Run("unknown argument", func(t *testing.T) {
		_, diags := parse(t, `
prop "name" {
  type  = "string"
  other = 1
}
`)
		require.True(t, diags.HasErrors())
	})

	t.Run("method takes no arguments", func(t *testing.T) {
		_, diags := parse(t, `
method "toggle" {
  arg = 1
}
`)
		require.True(t, diags.HasErrors())
	})
}

func TestParseSyntaxError(t *testing.T) {
	_, diags := parse(t, `prop "name" {`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, diag.CodeInvalidLogic, diags[0].Code)
	assert.Equal(t, "widget", diags[0].Unit)
}

func TestScanImports(t *testing.T) {
	sections, _ := source.Split(&source.Unit{ID: "page", Path: "page.braid", Text: `<logic>
prop "title" {
  type = "string"
}

import "Card" {
  from = "./card.braid"
}

import "Nav" {
  from = "../nav/nav.braid"
}
</logic>`})

	imports := ScanImports("page", sections.Logic)
	require.Len(t, imports, 2)
	assert.Equal(t, "Card", imports[0].Name)
	assert.Equal(t, "./card.braid", imports[0].From)
	assert.Equal(t, "Nav", imports[1].Name)
	assert.Equal(t, "../nav/nav.braid", imports[1].From)
}

func TestScanImportsIsBestEffort(t *testing.T) {
	t.Run("absent section", func(t *testing.T) {
		assert.Nil(t, ScanImports("page", source.Section{}))
	})

	t.Run("skips imports without a usable from", func(t *testing.T) {
		sections, _ := source.Split(&source.Unit{ID: "page", Path: "page.braid", Text: `<logic>
import "Card" {
}

import "Nav" {
  from = "./nav.braid"
}
</logic>`})
		imports := ScanImports("page", sections.Logic)
		require.Len(t, imports, 1)
		assert.Equal(t, "Nav", imports[0].Name)
	})
}
