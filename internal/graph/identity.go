package graph

import "github.com/roach88/lumo/internal/ir"

// FallbackColor is used for payload types with no palette entry.
var FallbackColor = ir.Color{R: 204, G: 204, B: 0}

// Palette maps payload types to slot display colors.
type Palette map[ir.PayloadType]ir.Color

// DefaultPalette returns the built-in slot colors.
func DefaultPalette() Palette {
	return Palette{
		ir.PayloadTexture2D:      {R: 230, G: 128, B: 26},
		ir.PayloadTexture3D:      {R: 204, G: 77, B: 26},
		ir.PayloadTextureCube:    {R: 230, G: 179, B: 26},
		ir.PayloadTexture2DGroup: {R: 179, G: 102, B: 51},
		ir.PayloadLightGroup:     {R: 230, G: 230, B: 26},
		ir.PayloadModel:          {R: 26, G: 153, B: 230},
		ir.PayloadMesh:           {R: 26, G: 153, B: 230},
		ir.PayloadParticles:      {R: 153, G: 51, B: 204},
		ir.PayloadShaderPass:     {R: 51, G: 204, B: 102},
		ir.PayloadStorageBuffer:  {R: 128, G: 128, B: 204},
		ir.PayloadTexelBuffer:    {R: 102, G: 179, B: 204},
		ir.PayloadVariable:       {R: 204, G: 204, B: 204},
		ir.PayloadAccelStructure: {R: 204, G: 26, B: 102},
	}
}

// Color returns the color for pt, or FallbackColor.
func (p Palette) Color(pt ir.PayloadType) ir.Color {
	if c, ok := p[pt]; ok {
		return c
	}
	return FallbackColor
}

// Merge returns a copy of p with overrides applied.
func (p Palette) Merge(overrides map[ir.PayloadType]ir.Color) Palette {
	out := make(Palette, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
