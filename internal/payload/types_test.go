package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/ir"
)

func TestGoType_CoversEveryPayloadType(t *testing.T) {
	for _, pt := range ir.PayloadTypes {
		_, ok := GoType(pt)
		assert.True(t, ok, "no Go type for %s", pt)
	}
	_, ok := GoType(ir.PayloadNone)
	assert.False(t, ok)
}

func TestDecode(t *testing.T) {
	v, err := Decode(ir.PayloadTextureCube, []byte(`{"name":"sky","width":512,"height":512,"format":"RGBA16F"}`))

	require.NoError(t, err)
	tex, ok := v.(*Texture)
	require.True(t, ok)
	assert.Equal(t, Texture{Name: "sky", Width: 512, Height: 512, Format: "RGBA16F"}, *tex)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(ir.PayloadType("BOGUS"), []byte(`{}`))
	assert.Error(t, err)

	_, err = Decode(ir.PayloadModel, []byte(`{"name": 3}`))
	assert.Error(t, err)
}

func TestDecodeValue_FromYAMLShapedMap(t *testing.T) {
	v, err := DecodeValue(ir.PayloadParticles, map[string]any{"name": "sparks", "count": 1000})

	require.NoError(t, err)
	assert.Equal(t, &Particles{Name: "sparks", Count: 1000}, v)
}

func TestVariable_JSON(t *testing.T) {
	v := Variable{Name: "exposure", Value: ir.IRObject{
		"stops": ir.IRInt(2),
		"auto":  ir.IRBool(false),
	}}

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"exposure","value":{"auto":false,"stops":2}}`, string(data))

	var back Variable
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back)
}

func TestVariable_RejectsFloat(t *testing.T) {
	_, err := Decode(ir.PayloadVariable, []byte(`{"name":"x","value":1.5}`))
	assert.Error(t, err)
}

func TestVariable_MissingValueIsNull(t *testing.T) {
	v, err := Decode(ir.PayloadVariable, []byte(`{"name":"x"}`))

	require.NoError(t, err)
	assert.Equal(t, &Variable{Name: "x", Value: ir.IRNull{}}, v)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "sky", Describe(&Texture{Name: "sky"}))
	assert.Equal(t, "exposure", Describe(&Variable{Name: "exposure"}))
	assert.Equal(t, "int", Describe(3))
}
