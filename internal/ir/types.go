package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// PayloadType tags the category of data a slot carries.
// Two slots can only be linked when their tags are equal.
type PayloadType string

const (
	PayloadNone           PayloadType = ""
	PayloadTexture2D      PayloadType = "TEXTURE_2D"
	PayloadTexture3D      PayloadType = "TEXTURE_3D"
	PayloadTextureCube    PayloadType = "TEXTURE_CUBE"
	PayloadTexture2DGroup PayloadType = "TEXTURE_2D_GROUP"
	PayloadLightGroup     PayloadType = "LIGHT_GROUP"
	PayloadModel          PayloadType = "MODEL"
	PayloadMesh           PayloadType = "MESH"
	PayloadParticles      PayloadType = "PARTICLES"
	PayloadShaderPass     PayloadType = "SHADER_PASS"
	PayloadStorageBuffer  PayloadType = "STORAGE_BUFFER"
	PayloadTexelBuffer    PayloadType = "TEXEL_BUFFER"
	PayloadVariable       PayloadType = "VARIABLE"
	PayloadAccelStructure PayloadType = "ACCEL_STRUCTURE"
)

// PayloadTypes lists every known payload type in declaration order.
var PayloadTypes = []PayloadType{
	PayloadTexture2D,
	PayloadTexture3D,
	PayloadTextureCube,
	PayloadTexture2DGroup,
	PayloadLightGroup,
	PayloadModel,
	PayloadMesh,
	PayloadParticles,
	PayloadShaderPass,
	PayloadStorageBuffer,
	PayloadTexelBuffer,
	PayloadVariable,
	PayloadAccelStructure,
}

// Known reports whether pt is one of the declared payload types.
func (pt PayloadType) Known() bool {
	for _, k := range PayloadTypes {
		if k == pt {
			return true
		}
	}
	return false
}

// ParsePayloadType validates a payload-type tag.
func ParsePayloadType(s string) (PayloadType, error) {
	pt := PayloadType(strings.TrimSpace(s))
	if !pt.Known() {
		return PayloadNone, fmt.Errorf("unknown payload type %q", s)
	}
	return pt, nil
}

// Place is the direction of a slot on its node.
type Place int

const (
	PlaceNone Place = iota
	PlaceInput
	PlaceOutput
)

func (p Place) String() string {
	switch p {
	case PlaceInput:
		return "INPUT"
	case PlaceOutput:
		return "OUTPUT"
	default:
		return "NONE"
	}
}

// Opposite returns the place a slot must have to be linked with p.
func (p Place) Opposite() Place {
	switch p {
	case PlaceInput:
		return PlaceOutput
	case PlaceOutput:
		return PlaceInput
	default:
		return PlaceNone
	}
}

// ParsePlace accepts INPUT or OUTPUT, case-insensitively.
func ParsePlace(s string) (Place, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INPUT":
		return PlaceInput, nil
	case "OUTPUT":
		return PlaceOutput, nil
	default:
		return PlaceNone, fmt.Errorf("unknown slot place %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Place) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Place) UnmarshalText(b []byte) error {
	v, err := ParsePlace(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Color is an 8-bit RGB display color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor parses #rrggbb (the leading # is optional).
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Point is an editor position. Integer units keep documents float-free.
type Point struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// OutputButton names one of the three graph output selections.
type OutputButton int

const (
	OutputLeft OutputButton = iota
	OutputMiddle
	OutputRight
)

// OutputButtons lists the selections in persisted order.
var OutputButtons = []OutputButton{OutputLeft, OutputMiddle, OutputRight}

func (b OutputButton) String() string {
	switch b {
	case OutputLeft:
		return "left"
	case OutputMiddle:
		return "middle"
	case OutputRight:
		return "right"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b OutputButton) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *OutputButton) UnmarshalText(text []byte) error {
	v, err := ParseOutputButton(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseOutputButton accepts left, middle or right.
func ParseOutputButton(s string) (OutputButton, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return OutputLeft, nil
	case "middle":
		return OutputMiddle, nil
	case "right":
		return OutputRight, nil
	default:
		return 0, fmt.Errorf("unknown output selection %q", s)
	}
}
