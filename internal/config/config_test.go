package config

import (
	"reflect"
	"testing"

	"github.com/flywave/go3d/float64/vec3"
)

func TestParseDomain(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantSet bool
		wantErr bool
	}{
		{"empty", "", false, false},
		{"valid", "0,0,-10,100,100,50", true, false},
		{"spaces", " 1, 2, 3, 4, 5, 6 ", true, false},
		{"too few", "0,0,0,1,1", false, true},
		{"not a number", "0,0,0,1,x,1", false, true},
		{"inverted z", "0,0,10,1,1,5", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDomain(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDomain(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && d.IsSet != tt.wantSet {
				t.Errorf("IsSet = %v, want %v", d.IsSet, tt.wantSet)
			}
		})
	}
}

func TestDomainIntersects(t *testing.T) {
	d, err := ParseDomain("0,0,0,10,10,10")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		box  vec3.Box
		want bool
	}{
		{"inside", vec3.Box{Min: vec3.T{1, 1, 1}, Max: vec3.T{2, 2, 2}}, true},
		{"overlapping", vec3.Box{Min: vec3.T{9, 9, 9}, Max: vec3.T{20, 20, 20}}, true},
		{"touching", vec3.Box{Min: vec3.T{10, 0, 0}, Max: vec3.T{12, 1, 1}}, true},
		{"outside", vec3.Box{Min: vec3.T{11, 0, 0}, Max: vec3.T{12, 1, 1}}, false},
		{"below", vec3.Box{Min: vec3.T{1, 1, -5}, Max: vec3.T{2, 2, -1}}, false},
	}
	for _, tt := range tests {
		if got := d.Intersects(tt.box); got != tt.want {
			t.Errorf("%s: Intersects = %v, want %v", tt.name, got, tt.want)
		}
	}

	unset := &Domain{}
	if !unset.Intersects(farBox()) {
		t.Error("unset domain should accept everything")
	}
}

func farBox() vec3.Box {
	return vec3.Box{Min: vec3.T{1e9, 1e9, 1e9}, Max: vec3.T{1e9, 1e9, 1e9}}
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("1.5,-2,3")
	if err != nil || p != (vec3.T{1.5, -2, 3}) {
		t.Errorf("ParsePoint = %v, %v", p, err)
	}
	if _, err := ParsePoint("1,2"); err == nil {
		t.Error("ParsePoint with two values should fail")
	}
}

func TestParseLoDs(t *testing.T) {
	if got := ParseLoDs(" 1.2, 2.2,,"); !reflect.DeepEqual(got, []string{"1.2", "2.2"}) {
		t.Errorf("ParseLoDs = %v", got)
	}
	if got := ParseLoDs(""); got != nil {
		t.Errorf("ParseLoDs(\"\") = %v, want nil", got)
	}

	cfg := DefaultConfig()
	if !cfg.LoDSelected("3") {
		t.Error("empty filter should select every LoD")
	}
	cfg.LoDs = []string{"2.2"}
	if cfg.LoDSelected("1.2") || !cfg.LoDSelected("2.2") {
		t.Error("LoD filter not applied")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.Validate(); err == nil {
		t.Error("config without input should fail")
	}

	cfg.InputFiles = []string{"a.json"}
	warnings, err := cfg.Validate()
	if err != nil || len(warnings) != 0 {
		t.Errorf("Validate = %v, %v", warnings, err)
	}

	cfg.TrueNorthDegrees = 400
	warnings, err = cfg.Validate()
	if err != nil {
		t.Errorf("out of range true north must not fail: %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(warnings))
	}

	cfg.UnitScale = 0
	if _, err := cfg.Validate(); err == nil {
		t.Error("zero unit scale should fail")
	}
}
