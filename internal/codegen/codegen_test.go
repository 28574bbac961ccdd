package codegen

import (
	"os"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidui/braid/internal/source"
	"github.com/braidui/braid/internal/style"
	"github.com/braidui/braid/internal/template"
	"github.com/braidui/braid/render"
)

func TestMain(m *testing.M) {
	v := m.Run()
	snaps.Clean(m)
	os.Exit(v)
}

func lowerUnit(t *testing.T, text string) (render.ProgramSpec, *style.Stylesheet) {
	t.Helper()
	unit := &source.Unit{ID: "widget.braid", Path: "widget.braid", Text: text}
	sections, splitDiags := source.Split(unit)
	require.False(t, splitDiags.HasErrors(), splitDiags.Error())

	var tpl *template.Template
	if sections.Template.Present {
		parsed, tplDiags := template.Parse(unit.ID, sections.Template, template.Options{})
		require.False(t, tplDiags.HasErrors(), tplDiags.Error())
		tpl = parsed
	}

	var sheet *style.Stylesheet
	token := ""
	if sections.Style.Present {
		parsed, styleDiags := style.Parse(unit.ID, sections.Style)
		require.False(t, styleDiags.HasErrors(), styleDiags.Error())
		sheet = parsed
		token = render.ScopeToken(unit.ID)
	}

	return Lower(unit.ID, token, tpl), sheet
}

func TestLowerGreeting(t *testing.T) {
	spec, _ := lowerUnit(t, `<template>
  <p class="greeting">Hello, {{ name | upper }}!</p>
</template>`)

	assert.Equal(t, "widget.braid", spec.Unit)
	assert.Empty(t, spec.ScopeToken)
	require.Len(t, spec.Roots, 1)

	p := spec.Roots[0]
	assert.Equal(t, render.OpElement, p.Kind)
	assert.Equal(t, "p", p.Tag)
	require.Equal(t, []render.AttrSpec{{Name: "class", Value: "greeting"}}, p.Attrs)

	require.Len(t, p.Children, 3)
	assert.Equal(t, render.OpText, p.Children[0].Kind)
	assert.Equal(t, "Hello, ", p.Children[0].Text)
	interp := p.Children[1]
	assert.Equal(t, render.OpInterp, interp.Kind)
	require.NotNil(t, interp.Expr)
	assert.Equal(t, "name", interp.Expr.Src)
	assert.Equal(t, []string{"upper"}, interp.Filters)
	assert.Equal(t, "widget.braid", interp.Expr.Range.Filename)
	assert.Equal(t, "!", p.Children[2].Text)
}

func TestLowerScopeTokenFollowsStyleSection(t *testing.T) {
	spec, _ := lowerUnit(t, `<template>
  <p>x</p>
</template>
<style>
p { color: red; }
</style>`)
	assert.Equal(t, render.ScopeToken("widget.braid"), spec.ScopeToken)
}

func TestLowerConditionalAndLoop(t *testing.T) {
	spec, _ := lowerUnit(t, `<template>
  <p @if="open">shown</p>
  <li @each="item, i in items" @key="item">{{ item }}</li>
</template>`)

	require.Len(t, spec.Roots, 2)

	cond := spec.Roots[0]
	assert.Equal(t, render.OpCond, cond.Kind)
	require.NotNil(t, cond.Cond)
	assert.Equal(t, "open", cond.Cond.Src)
	require.Len(t, cond.Then, 1)
	assert.Equal(t, "p", cond.Then[0].Tag)
	assert.Empty(t, cond.Else)

	loop := spec.Roots[1]
	assert.Equal(t, render.OpLoop, loop.Kind)
	assert.Equal(t, "item", loop.Item)
	assert.Equal(t, "i", loop.Index)
	assert.Equal(t, "items", loop.Seq.Src)
	assert.Equal(t, "item", loop.Key.Src)
	require.Len(t, loop.Body, 1)
	assert.Equal(t, "li", loop.Body[0].Tag)
}

func TestLowerComponentSlots(t *testing.T) {
	spec, _ := lowerUnit(t, `<template>
  <Card :title="heading">
    <p>default content</p>
    <p slot="footer" class="fine">footer content</p>
  </Card>
</template>`)

	require.Len(t, spec.Roots, 1)
	card := spec.Roots[0]
	assert.Equal(t, render.OpComponent, card.Kind)
	assert.Equal(t, "Card", card.Component)
	require.Len(t, card.Props, 1)
	assert.Equal(t, "title", card.Props[0].Name)
	require.NotNil(t, card.Props[0].Bound)

	require.Len(t, card.SlotContent, 2)
	assert.Equal(t, "", card.SlotContent[0].Name)
	require.Len(t, card.SlotContent[0].Children, 1)
	assert.Equal(t, "p", card.SlotContent[0].Children[0].Tag)

	footer := card.SlotContent[1]
	assert.Equal(t, "footer", footer.Name)
	require.Len(t, footer.Children, 1)
	// The routing attribute is consumed; only real attributes remain.
	assert.Equal(t, []render.AttrSpec{{Name: "class", Value: "fine"}}, footer.Children[0].Attrs)
}

func TestLowerKeepsSignificantSpace(t *testing.T) {
	spec, _ := lowerUnit(t, `<template>
  <Card><b>a</b> <i>b</i></Card>
</template>`)

	card := spec.Roots[0]
	require.Len(t, card.SlotContent, 1)
	children := card.SlotContent[0].Children
	require.Len(t, children, 3)
	assert.Equal(t, " ", children[1].Text)
}

const artifactUnit = `<logic>
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
    <button @on:click="toggle">{{ name | upper }}</button>
    <p @if="open">details</p>
  </div>
</template>
<style>
.card { padding: 1rem; }
</style>`

func TestRenderArtifact(t *testing.T) {
	spec, _ := lowerUnit(t, artifactUnit)
	out, err := RenderArtifact(spec, "ui")
	require.NoError(t, err)

	src := string(out)
	assert.True(t, strings.HasPrefix(src, "// Code generated by braidc. DO NOT EDIT."))
	assert.Contains(t, src, "package ui")
	assert.Contains(t, src, "var WidgetSpec = render.ProgramSpec{")
	assert.Contains(t, src, "func NewWidgetProgram() (*render.Program, error)")
	snaps.MatchSnapshot(t, src)
}

func TestRenderArtifactIsDeterministic(t *testing.T) {
	spec, _ := lowerUnit(t, artifactUnit)
	first, err := RenderArtifact(spec, "ui")
	require.NoError(t, err)
	second, err := RenderArtifact(spec, "ui")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderArtifactWithoutExpressions(t *testing.T) {
	spec, _ := lowerUnit(t, `<template>
  <p>static only</p>
</template>`)
	out, err := RenderArtifact(spec, "ui")
	require.NoError(t, err)
	// No expressions means no positions, so the hcl import must be gone.
	assert.NotContains(t, string(out), "hashicorp/hcl")
}

func TestStyleArtifact(t *testing.T) {
	_, sheet := lowerUnit(t, artifactUnit)
	out := StyleArtifact("widget.braid", sheet)

	src := string(out)
	token := render.ScopeToken("widget.braid")
	assert.True(t, strings.HasPrefix(src, "/* Code generated by braidc. DO NOT EDIT. */"))
	assert.Contains(t, src, ".card["+render.ScopeAttr(token)+"]")
	snaps.MatchSnapshot(t, src)
}

func TestExportName(t *testing.T) {
	cases := map[string]string{
		"widget.braid":          "Widget",
		"pages/user-card.braid": "UserCard",
		"pages/home.braid":      "Home",
		"404.braid":             "U404",
		"x_y.braid":             "XY",
	}
	for unitID, want := range cases {
		assert.Equal(t, want, ExportName(unitID), unitID)
	}
}

func TestPackageFor(t *testing.T) {
	assert.Equal(t, "ui", PackageFor("home.braid", "ui"))
	assert.Equal(t, "pages", PackageFor("pages/home.braid", "ui"))
	assert.Equal(t, "mywidgets", PackageFor("my-widgets/tag.braid", "ui"))
}

func TestArtifactPaths(t *testing.T) {
	assert.Equal(t, "pages/home.braid.go", RenderArtifactPath("pages/home.braid"))
	assert.Equal(t, "pages/home.braid.css", StyleArtifactPath("pages/home.braid"))
}
