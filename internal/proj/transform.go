package proj

import (
	"math"

	"github.com/flywave/go3d/float64/vec3"
)

// Transformer converts quantized CityJSON vertices to scene coordinates.
//
// A vertex v becomes v*scale*unitScale plus the translation term, minus the
// world origin, and is then rotated about Z by Rotation radians. In the default
// relative mode the translation term is (FirstFileTranslation + translate) *
// unitScale so that every file of a batch shares the origin of the first file.
type Transformer struct {
	Scale                [3]float64
	Translate            [3]float64
	FirstFileTranslation [3]float64
	WorldOrigin          vec3.T
	Rotation             float64 // radians, counter-clockwise about +Z
	UnitScale            float64
	Absolute             bool // use the file's own translate instead of the relative origin

	sin, cos float64
}

// Params are the batch-wide settings shared by every file's transformer
type Params struct {
	FirstFileTranslation [3]float64
	WorldOrigin          vec3.T
	TrueNorthDegrees     float64
	UnitScale            float64
	Absolute             bool
}

// FirstFileTranslation returns the shared origin offset for a batch: the
// negated translate vector of the first file.
func FirstFileTranslation(translate [3]float64) [3]float64 {
	return [3]float64{-translate[0], -translate[1], -translate[2]}
}

// DegreesToRadians converts a true-north angle to radians
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// NewTransformer creates a transformer for one file
func NewTransformer(scale, translate [3]float64, p Params) *Transformer {
	unit := p.UnitScale
	if unit == 0 {
		unit = 1
	}
	rot := DegreesToRadians(p.TrueNorthDegrees)
	return &Transformer{
		Scale:                scale,
		Translate:            translate,
		FirstFileTranslation: p.FirstFileTranslation,
		WorldOrigin:          p.WorldOrigin,
		Rotation:             rot,
		UnitScale:            unit,
		Absolute:             p.Absolute,
		sin:                  math.Sin(rot),
		cos:                  math.Cos(rot),
	}
}

// Transform converts one quantized vertex
func (t *Transformer) Transform(raw [3]int64) vec3.T {
	p := vec3.T{
		float64(raw[0]) * t.Scale[0] * t.UnitScale,
		float64(raw[1]) * t.Scale[1] * t.UnitScale,
		float64(raw[2]) * t.Scale[2] * t.UnitScale,
	}

	offset := t.offset()
	p.Add(&offset)
	p.Sub(&t.WorldOrigin)

	return t.rotate(p)
}

// TransformAll converts a whole vertex list
func (t *Transformer) TransformAll(raw [][3]int64) []vec3.T {
	out := make([]vec3.T, len(raw))
	for i, v := range raw {
		out[i] = t.Transform(v)
	}
	return out
}

// TransformTemplate converts template-local vertices. Template coordinates
// are real numbers already, so neither the file scale nor any translation is
// applied; instances add their anchor at placement time.
func (t *Transformer) TransformTemplate(raw [][3]float64) []vec3.T {
	out := make([]vec3.T, len(raw))
	for i, v := range raw {
		p := vec3.T{v[0] * t.UnitScale, v[1] * t.UnitScale, v[2] * t.UnitScale}
		out[i] = t.rotate(p)
	}
	return out
}

// NeedsRotation returns true if a non-zero rotation is configured
func (t *Transformer) NeedsRotation() bool {
	return t.Rotation != 0
}

func (t *Transformer) offset() vec3.T {
	if t.Absolute {
		return vec3.T{
			t.Translate[0] * t.UnitScale,
			t.Translate[1] * t.UnitScale,
			t.Translate[2] * t.UnitScale,
		}
	}
	return vec3.T{
		(t.FirstFileTranslation[0] + t.Translate[0]) * t.UnitScale,
		(t.FirstFileTranslation[1] + t.Translate[1]) * t.UnitScale,
		(t.FirstFileTranslation[2] + t.Translate[2]) * t.UnitScale,
	}
}

// rotate applies the planar rotation to X/Y; Z is left untouched
func (t *Transformer) rotate(p vec3.T) vec3.T {
	if !t.NeedsRotation() {
		return p
	}
	return vec3.T{
		p[0]*t.cos - p[1]*t.sin,
		p[0]*t.sin + p[1]*t.cos,
		p[2],
	}
}
