package integrationtests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidui/braid/internal/build"
	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/testutil"
)

// An import cycle is reported once, on the cycle's first member in unit
// order, with every participant named. No member compiles and no member
// emits artifacts, but units outside the cycle build normally.
func TestImportCycleFailsOnceWithoutArtifacts(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"a.braid": `<logic>
import "B" {
  from = "./b.braid"
}
</logic>
<template><B></B></template>`,
		"b.braid": `<logic>
import "A" {
  from = "./a.braid"
}
</logic>
<template><A></A></template>`,
		"clean.braid": "<logic>\n</logic>\n<template><p>ok</p></template>",
	})

	res := p.Build(context.Background())
	require.True(t, res.Failed)

	a := res.Units["a.braid"]
	require.NotNil(t, a)
	assert.Equal(t, build.StatusFailed, a.Status)
	require.Len(t, a.Diags, 1)
	assert.Equal(t, diag.CodeCircularDependency, a.Diags[0].Code)
	assert.Equal(t, "circular dependency: a.braid -> b.braid -> a.braid", a.Diags[0].Summary)

	b := res.Units["b.braid"]
	require.NotNil(t, b)
	assert.Equal(t, build.StatusFailed, b.Status)
	assert.Empty(t, b.Diags, "the cycle is reported on one member only")

	cycles := 0
	for _, u := range res.Units {
		for _, d := range u.Diags {
			if d.Code == diag.CodeCircularDependency {
				cycles++
			}
		}
	}
	assert.Equal(t, 1, cycles)

	assert.False(t, p.HasArtifact("a.braid.go"))
	assert.False(t, p.HasArtifact("b.braid.go"))
	assert.Equal(t, build.StatusCompiled, res.Units["clean.braid"].Status)
	assert.True(t, p.HasArtifact("clean.braid.go"))
}
