package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/ir"
)

func TestCompileNodeTypeBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		node: Blur: {
			category: "Effects"
			inputs: [{name: "in", type: "TEXTURE_2D"}]
			outputs: [{name: "out", type: "TEXTURE_2D", binding: 2}]
			passthrough: true
		}
	`)
	require.NoError(t, v.Err())

	nt, err := CompileNodeType(v.LookupPath(cue.ParsePath("node.Blur")))

	require.NoError(t, err)
	assert.Equal(t, ir.NodeType{
		Name:        "Blur",
		Category:    "Effects",
		Inputs:      []ir.SlotDecl{{Name: "in", Type: ir.PayloadTexture2D}},
		Outputs:     []ir.SlotDecl{{Name: "out", Type: ir.PayloadTexture2D, Binding: 2}},
		Passthrough: true,
	}, nt)
}

func TestCompileNodeTypeFlags(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		node: Output: {
			inputs: [{name: "layers", type: "TEXTURE_2D", accept_many: true}]
			dynamic: true
			deletion_disabled: true
		}
	`)
	require.NoError(t, v.Err())

	nt, err := CompileNodeType(v.LookupPath(cue.ParsePath("node.Output")))

	require.NoError(t, err)
	assert.True(t, nt.DynamicSlots)
	assert.True(t, nt.DeletionDisabled)
	require.Len(t, nt.Inputs, 1)
	assert.True(t, nt.Inputs[0].AcceptMany)
	assert.Empty(t, nt.Outputs)
}

func TestCompileNodeTypeErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name:    "missing slot name",
			src:     `node: X: inputs: [{type: "MODEL"}]`,
			wantMsg: "name is required",
		},
		{
			name:    "missing slot type",
			src:     `node: X: inputs: [{name: "in"}]`,
			wantMsg: "type is required",
		},
		{
			name:    "unknown payload type",
			src:     `node: X: outputs: [{name: "out", type: "HOLOGRAM"}]`,
			wantMsg: "unknown payload type",
		},
		{
			name:    "negative binding",
			src:     `node: X: outputs: [{name: "out", type: "MODEL", binding: -1}]`,
			wantMsg: "out of range",
		},
		{
			name:    "float binding",
			src:     `node: X: outputs: [{name: "out", type: "MODEL", binding: 1.5}]`,
			wantMsg: "binding",
		},
		{
			name:    "no slots",
			src:     `node: X: category: "Empty"`,
			wantMsg: "declares no slots",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileNodeType(v.LookupPath(cue.ParsePath("node.X")))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCompileCatalog(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		colors: {
			TEXTURE_2D: "#ff0000"
			MODEL:      "0000ff"
		}
		node: {
			Loader: outputs: [{name: "out", type: "TEXTURE_2D"}]
			Blur: {
				inputs: [{name: "in", type: "TEXTURE_2D"}]
				outputs: [{name: "out", type: "TEXTURE_2D"}]
				passthrough: true
			}
			Viewer: inputs: [{name: "in", type: "TEXTURE_2D"}]
		}
	`)
	require.NoError(t, v.Err())

	cat, err := CompileCatalog(v)

	require.NoError(t, err)
	require.Len(t, cat.Types, 3)
	assert.Equal(t, "Loader", cat.Types[0].Name)
	assert.Equal(t, "Blur", cat.Types[1].Name)
	assert.Equal(t, "Viewer", cat.Types[2].Name)
	assert.Equal(t, map[ir.PayloadType]ir.Color{
		ir.PayloadTexture2D: {R: 255},
		ir.PayloadModel:     {B: 255},
	}, cat.Colors)

	blur, ok := cat.Lookup("Blur")
	require.True(t, ok)
	assert.True(t, blur.Passthrough)
}

func TestCompileCatalogBadColor(t *testing.T) {
	ctx := cuecontext.New()

	v := ctx.CompileString(`colors: TEXTURE_2D: "red"`)
	_, err := CompileCatalog(v)
	assert.Error(t, err)

	v = ctx.CompileString(`colors: PLASMA: "#ffffff"`)
	_, err = CompileCatalog(v)
	assert.Error(t, err)
}

func TestCompileCatalogEmpty(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{}`)

	cat, err := CompileCatalog(v)

	require.NoError(t, err)
	assert.Empty(t, cat.Types)
	assert.Nil(t, cat.Colors)
}

func TestCompileErrorFormatting(t *testing.T) {
	err := &CompileError{Field: "inputs[0].type", Message: "type is required"}
	assert.Equal(t, "inputs[0].type: type is required", err.Error())
}
