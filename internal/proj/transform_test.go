package proj

import (
	"math"
	"testing"

	"github.com/flywave/go3d/float64/vec3"
)

const eps = 1e-9

func near(a, b vec3.T, tol float64) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestTransformAbsoluteIsScalePlusTranslate(t *testing.T) {
	tests := []struct {
		raw       [3]int64
		scale     [3]float64
		translate [3]float64
	}{
		{[3]int64{0, 0, 0}, [3]float64{0.001, 0.001, 0.001}, [3]float64{0, 0, 0}},
		{[3]int64{1234, -5678, 91011}, [3]float64{0.001, 0.001, 0.001}, [3]float64{84000.5, 447000.25, 2.5}},
		{[3]int64{7, 8, 9}, [3]float64{0.01, 0.02, 0.5}, [3]float64{-10, 20, -30}},
	}

	for _, tt := range tests {
		tr := NewTransformer(tt.scale, tt.translate, Params{UnitScale: 1, Absolute: true})
		got := tr.Transform(tt.raw)
		want := vec3.T{
			float64(tt.raw[0])*tt.scale[0] + tt.translate[0],
			float64(tt.raw[1])*tt.scale[1] + tt.translate[1],
			float64(tt.raw[2])*tt.scale[2] + tt.translate[2],
		}
		if !near(got, want, eps) {
			t.Errorf("Transform(%v) = %v, want %v", tt.raw, got, want)
		}
	}
}

func TestTransformRelativeToFirstFile(t *testing.T) {
	first := [3]float64{1000, 2000, 0}
	second := [3]float64{1100, 2050, 5}
	params := Params{FirstFileTranslation: FirstFileTranslation(first), UnitScale: 1}

	// The first file lands on the origin
	tr1 := NewTransformer([3]float64{1, 1, 1}, first, params)
	if got := tr1.Transform([3]int64{0, 0, 0}); !near(got, vec3.T{}, eps) {
		t.Errorf("first file origin = %v, want (0,0,0)", got)
	}

	// The second file keeps its offset relative to the first
	tr2 := NewTransformer([3]float64{1, 1, 1}, second, params)
	if got := tr2.Transform([3]int64{0, 0, 0}); !near(got, vec3.T{100, 50, 5}, eps) {
		t.Errorf("second file origin = %v, want (100,50,5)", got)
	}
}

func TestTransformWorldOriginAndUnitScale(t *testing.T) {
	tr := NewTransformer([3]float64{0.001, 0.001, 0.001}, [3]float64{10, 20, 30}, Params{
		WorldOrigin: vec3.T{1000, 2000, 3000},
		UnitScale:   100, // metres to centimetres
		Absolute:    true,
	})
	got := tr.Transform([3]int64{1000, 1000, 1000})
	// (1 + 10) * 100 - 1000, (1 + 20) * 100 - 2000, (1 + 30) * 100 - 3000
	want := vec3.T{100, 100, 100}
	if !near(got, want, 1e-6) {
		t.Errorf("Transform = %v, want %v", got, want)
	}
}

func TestRotationPreservesZ(t *testing.T) {
	raw := [3]int64{12345, -6789, 4242}
	scale := [3]float64{0.001, 0.001, 0.001}
	translate := [3]float64{50, 60, 70}

	base := NewTransformer(scale, translate, Params{UnitScale: 1, Absolute: true}).Transform(raw)

	for _, deg := range []float64{-360, -90, -12.5, 0, 33, 90, 180, 359.9} {
		tr := NewTransformer(scale, translate, Params{TrueNorthDegrees: deg, UnitScale: 1, Absolute: true})
		got := tr.Transform(raw)
		if math.Abs(got[2]-base[2]) > eps {
			t.Errorf("rotation %v: z = %v, want %v", deg, got[2], base[2])
		}
		// Rotation keeps the distance to the Z axis
		r0 := math.Hypot(base[0], base[1])
		r1 := math.Hypot(got[0], got[1])
		if math.Abs(r0-r1) > 1e-6 {
			t.Errorf("rotation %v: radius %v, want %v", deg, r1, r0)
		}
	}
}

func TestRotationQuarterTurn(t *testing.T) {
	tr := NewTransformer([3]float64{1, 1, 1}, [3]float64{}, Params{TrueNorthDegrees: 90, UnitScale: 1, Absolute: true})
	got := tr.Transform([3]int64{1, 0, 5})
	if !near(got, vec3.T{0, 1, 5}, 1e-12) {
		t.Errorf("90 degree rotation of (1,0,5) = %v, want (0,1,5)", got)
	}
}

func TestTransformTemplateIgnoresScaleAndTranslate(t *testing.T) {
	tr := NewTransformer([3]float64{0.001, 0.001, 0.001}, [3]float64{500, 500, 500}, Params{UnitScale: 1})
	got := tr.TransformTemplate([][3]float64{{1.5, 2.5, 3.5}})
	if !near(got[0], vec3.T{1.5, 2.5, 3.5}, eps) {
		t.Errorf("TransformTemplate = %v, want (1.5,2.5,3.5)", got[0])
	}
}
