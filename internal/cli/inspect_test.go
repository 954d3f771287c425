package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_Text(t *testing.T) {
	stdout, _, err := execute(t, "inspect", chainScene)
	require.NoError(t, err)

	for _, want := range []string{
		"Scene: testdata/scenes/chain.xml\n",
		"Nodes (3):\n",
		"  [1] TextureLoader \"albedo\"\n",
		"    out 2 texture TEXTURE_2D binding=0\n",
		"  [3] Blur\n",
		"    in  4 in TEXTURE_2D binding=0\n",
		"    in  7 in TEXTURE_2D binding=1\n",
		"Links (2):\n",
		"  8: 1:2 -> 3:4 TEXTURE_2D\n",
		"  9: 3:5 -> 6:7 TEXTURE_2D\n",
		"Outputs:\n  left: 3:5\n",
	} {
		assert.Contains(t, stdout, want)
	}
	assert.NotContains(t, stdout, "Loaded:", "no catalog, no load")
	assert.NotContains(t, stdout, "link cycle")
}

func TestInspect_WithCatalog(t *testing.T) {
	stdout, _, err := execute(t, "inspect", chainScene, "--catalog", renderCatalog)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Loaded: 3 node(s), 2 link(s), 1 output(s)\n")
	assert.NotContains(t, stdout, "conflict:")
	assert.NotContains(t, stdout, "skipped:")
}

func TestInspect_Cycle(t *testing.T) {
	stdout, _, err := execute(t, "inspect", "testdata/scenes/feedback.xml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "! link cycle between nodes")
}

func TestInspect_JSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "inspect", chainScene, "--catalog", renderCatalog)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	r := resp.Data
	assert.NotEmpty(t, r.Hash)
	require.Len(t, r.Nodes, 3)
	assert.Equal(t, "Viewer", r.Nodes[2].Type)
	require.Len(t, r.Nodes[2].Inputs, 1)
	assert.Equal(t, "#e6801a", r.Nodes[2].Inputs[0].Color, "catalog palette colors the slot")
	require.Len(t, r.Links, 2)
	assert.Equal(t, int64(9), r.Links[1].ID)
	require.NotNil(t, r.Load)
	assert.Equal(t, 2, r.Load.Links)
}

func TestInspect_HashIgnoresLayout(t *testing.T) {
	hash := func(path string) string {
		stdout, _, err := execute(t, "--format", "json", "inspect", path)
		require.NoError(t, err)
		var resp struct {
			Data InspectResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		return resp.Data.Hash
	}
	assert.NotEqual(t, hash(chainScene), hash("testdata/scenes/feedback.xml"))
	assert.Equal(t, hash(chainScene), hash(chainScene))
}

func TestInspect_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{"missing scene", []string{"inspect", "testdata/scenes/missing.xml"}, ErrCodeNotFound, ExitCommandError},
		{"garbage scene", []string{"inspect", "testdata/scenes/garbage.xml"}, ErrCodeSceneFormat, ExitCommandError},
		{"missing catalog", []string{"inspect", chainScene, "--catalog", "/nonexistent"}, ErrCodeNotFound, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, stdout, "Error ["+tt.wantCode+"]")
		})
	}
}
