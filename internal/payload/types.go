package payload

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/roach88/lumo/internal/ir"
)

// Texture is a single image resource.
type Texture struct {
	Name   string `json:"name"`
	Width  uint32 `json:"width,omitempty"`
	Height uint32 `json:"height,omitempty"`
	Depth  uint32 `json:"depth,omitempty"`
	Format string `json:"format,omitempty"`
}

// TextureGroup is an ordered set of 2D textures bound together.
type TextureGroup struct {
	Name     string    `json:"name"`
	Textures []Texture `json:"textures"`
}

// Light is one entry of a light group.
type Light struct {
	Name  string   `json:"name"`
	Kind  string   `json:"kind,omitempty"`
	Color ir.Color `json:"color"`
}

// LightGroup is the set of lights a pass renders with.
type LightGroup struct {
	Name   string  `json:"name"`
	Lights []Light `json:"lights"`
}

// Model is mesh geometry. MESH slots carry a single-mesh Model.
type Model struct {
	Name     string `json:"name"`
	Meshes   uint32 `json:"meshes,omitempty"`
	Vertices uint64 `json:"vertices,omitempty"`
	Indices  uint64 `json:"indices,omitempty"`
}

// Particles is a particle system's simulation buffer.
type Particles struct {
	Name  string `json:"name"`
	Count uint32 `json:"count"`
}

// ShaderPass is a renderable pass handed to a parent pass for execution.
type ShaderPass struct {
	Name  string `json:"name"`
	Stage string `json:"stage,omitempty"`
}

// StorageBuffer is a raw GPU buffer.
type StorageBuffer struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

// TexelBuffer is a typed buffer view.
type TexelBuffer struct {
	Name   string `json:"name"`
	Size   uint64 `json:"size"`
	Format string `json:"format,omitempty"`
}

// AccelStructure is a ray-tracing acceleration structure.
type AccelStructure struct {
	Name      string `json:"name"`
	Instances uint32 `json:"instances"`
}

// Variable is a named scalar or structured value.
type Variable struct {
	Name  string
	Value ir.IRValue
}

type variableJSON struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON writes the value through the IR encoder, so nulls and floats
// are rejected the same way they are everywhere else.
func (v Variable) MarshalJSON() ([]byte, error) {
	val := v.Value
	if val == nil {
		val = ir.IRNull{}
	}
	raw, err := ir.MarshalIRValue(val)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.Name, err)
	}
	return json.Marshal(variableJSON{Name: v.Name, Value: raw})
}

// UnmarshalJSON reads {"name": ..., "value": ...}.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var raw variableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Name = raw.Name
	if len(raw.Value) == 0 {
		v.Value = ir.IRNull{}
		return nil
	}
	val, err := ir.UnmarshalIRValue(raw.Value)
	if err != nil {
		return fmt.Errorf("variable %q: %w", raw.Name, err)
	}
	v.Value = val
	return nil
}

var goTypes = map[ir.PayloadType]reflect.Type{
	ir.PayloadTexture2D:      reflect.TypeOf((*Texture)(nil)).Elem(),
	ir.PayloadTexture3D:      reflect.TypeOf((*Texture)(nil)).Elem(),
	ir.PayloadTextureCube:    reflect.TypeOf((*Texture)(nil)).Elem(),
	ir.PayloadTexture2DGroup: reflect.TypeOf((*TextureGroup)(nil)).Elem(),
	ir.PayloadLightGroup:     reflect.TypeOf((*LightGroup)(nil)).Elem(),
	ir.PayloadModel:          reflect.TypeOf((*Model)(nil)).Elem(),
	ir.PayloadMesh:           reflect.TypeOf((*Model)(nil)).Elem(),
	ir.PayloadParticles:      reflect.TypeOf((*Particles)(nil)).Elem(),
	ir.PayloadShaderPass:     reflect.TypeOf((*ShaderPass)(nil)).Elem(),
	ir.PayloadStorageBuffer:  reflect.TypeOf((*StorageBuffer)(nil)).Elem(),
	ir.PayloadTexelBuffer:    reflect.TypeOf((*TexelBuffer)(nil)).Elem(),
	ir.PayloadVariable:       reflect.TypeOf((*Variable)(nil)).Elem(),
	ir.PayloadAccelStructure: reflect.TypeOf((*AccelStructure)(nil)).Elem(),
}

// GoType returns the struct type that slots of pt move.
func GoType(pt ir.PayloadType) (reflect.Type, bool) {
	t, ok := goTypes[pt]
	return t, ok
}

// New returns a pointer to a zero payload for pt.
func New(pt ir.PayloadType) (any, error) {
	t, ok := goTypes[pt]
	if !ok {
		return nil, fmt.Errorf("unknown payload type %q", pt)
	}
	return reflect.New(t).Interface(), nil
}

// Decode builds a payload of type pt from a JSON document.
func Decode(pt ir.PayloadType, data []byte) (any, error) {
	v, err := New(pt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", pt, err)
	}
	return v, nil
}

// DecodeValue builds a payload from a generic value, typically a map
// produced by a YAML or JSON decoder.
func DecodeValue(pt ir.PayloadType, value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", pt, err)
	}
	return Decode(pt, data)
}

// Describe returns a short label for a payload value, used in traces.
func Describe(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case *Texture:
		return p.Name
	case *TextureGroup:
		return p.Name
	case *LightGroup:
		return p.Name
	case *Model:
		return p.Name
	case *Particles:
		return p.Name
	case *ShaderPass:
		return p.Name
	case *StorageBuffer:
		return p.Name
	case *TexelBuffer:
		return p.Name
	case *AccelStructure:
		return p.Name
	case *Variable:
		return p.Name
	}
	return fmt.Sprintf("%T", v)
}

// ToIR converts a payload to an IRValue for journaling. Payload fields are
// integers and strings, so the conversion never meets a float.
func ToIR(v any) (ir.IRValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return ir.UnmarshalIRValue(data)
}

// FromIR rebuilds a payload of type pt from a journaled IRValue.
func FromIR(pt ir.PayloadType, v ir.IRValue) (any, error) {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", pt, err)
	}
	return Decode(pt, data)
}
