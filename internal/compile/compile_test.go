package compile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/source"
	"github.com/braidui/braid/internal/symbol"
)

func compileText(t *testing.T, text string, deps map[string]symbol.Export, opts Options) Result {
	t.Helper()
	res, err := Unit(context.Background(), Request{
		Unit:    &source.Unit{ID: "widget.braid", Path: "widget.braid", Text: text},
		Deps:    deps,
		Options: opts,
	})
	require.NoError(t, err)
	return res
}

const cleanUnit = `<logic>
prop "name" {
  type = "string"
}

state "open" {
  initial = false
}

method "toggle" {}
</logic>
<template>
  <div class="card">
    <button @on:click="toggle">{{ name }}</button>
    <slot name="footer"></slot>
  </div>
</template>
<style>
.card { padding: 1rem; }
</style>`

func TestCompileCleanUnit(t *testing.T) {
	res := compileText(t, cleanUnit, nil, Options{})

	assert.Empty(t, res.Diags)
	require.NotNil(t, res.Render)
	assert.Equal(t, "widget.braid.go", res.Render.Path)
	assert.Contains(t, string(res.Render.Data), "var WidgetSpec = render.ProgramSpec{")
	require.NotNil(t, res.Style)
	assert.Equal(t, "widget.braid.css", res.Style.Path)
	assert.Contains(t, string(res.Style.Data), "[data-braid-")

	assert.Equal(t, []symbol.PropSig{{Name: "name", Required: true}}, res.Export.Props)
	assert.Equal(t, []string{"footer"}, res.Export.Slots)
}

func TestCompileStyleSurvivesMarkupError(t *testing.T) {
	res := compileText(t, `<logic>
method "noop" {}
</logic>
<template>
  <div>
    <p>never closed
  </div>
</template>
<style>
.fine { color: green; }
</style>`, nil, Options{})

	require.True(t, res.Diags.HasErrors())
	assert.Equal(t, diag.CodeUnclosedElement, res.Diags[0].Code)
	assert.Nil(t, res.Render)
	require.NotNil(t, res.Style)
	assert.Contains(t, string(res.Style.Data), ".fine[data-braid-")
}

func TestCompileLogicOnlyUnit(t *testing.T) {
	res := compileText(t, `<logic>
method "noop" {}
</logic>`, nil, Options{})

	assert.Empty(t, res.Diags)
	require.NotNil(t, res.Render)
	assert.Nil(t, res.Style)
	// No style section, so rendered markup carries no scope attribute.
	assert.NotContains(t, string(res.Render.Data), "ScopeToken")
}

func TestCompileUsesDepExports(t *testing.T) {
	unit := `<logic>
import "Card" {
  from = "./card.braid"
}
</logic>
<template>
  <Card></Card>
</template>`

	t.Run("missing required prop", func(t *testing.T) {
		deps := map[string]symbol.Export{"card.braid": {Props: []symbol.PropSig{{Name: "title", Required: true}}}}
		res := compileText(t, unit, deps, Options{})
		require.True(t, res.Diags.HasErrors())
		assert.Equal(t, diag.CodeMissingRequiredProp, res.Diags[0].Code)
		assert.Nil(t, res.Render)
	})

	t.Run("unresolved import", func(t *testing.T) {
		res := compileText(t, unit, nil, Options{})
		require.True(t, res.Diags.HasErrors())
		assert.Equal(t, diag.CodeUnresolvedSymbol, res.Diags[0].Code)
	})
}

func TestCompileStrictDirectives(t *testing.T) {
	unit := `<logic>
method "noop" {}
</logic>
<template>
  <p @whenever="x">text</p>
</template>`

	t.Run("warning by default", func(t *testing.T) {
		res := compileText(t, unit, nil, Options{})
		require.Len(t, res.Diags, 1)
		assert.False(t, res.Diags.HasErrors())
		assert.Equal(t, diag.CodeUnknownDirective, res.Diags[0].Code)
		// Warnings do not block artifacts.
		assert.NotNil(t, res.Render)
	})

	t.Run("error in strict mode", func(t *testing.T) {
		res := compileText(t, unit, nil, Options{StrictDirectives: true})
		require.True(t, res.Diags.HasErrors())
		assert.Nil(t, res.Render)
	})
}

func TestCompileRootPackageNaming(t *testing.T) {
	res, err := Unit(context.Background(), Request{
		Unit:    &source.Unit{ID: "pages/home.braid", Path: "pages/home.braid", Text: "<logic>\nmethod \"noop\" {}\n</logic>\n<template>\n<p>hi</p>\n</template>"},
		Options: Options{RootPackage: "ui"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Render)
	assert.Contains(t, string(res.Render.Data), "package pages")
	assert.True(t, strings.HasPrefix(res.Render.Path, "pages/"))
}

func TestCompileCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Unit(ctx, Request{Unit: &source.Unit{ID: "widget.braid", Path: "widget.braid", Text: cleanUnit}})
	assert.ErrorIs(t, err, context.Canceled)
}
