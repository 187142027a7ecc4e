package referral

import (
	"encoding/json"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"string", "34", "34", true},
		{"empty string", "", "", true},
		{"int", 34, "34", true},
		{"int64", int64(9007199254740993), "9007199254740993", true},
		{"uint", uint(7), "7", true},
		{"float integral", float64(34), "34", true},
		{"float fraction", 34.5, "34.5", true},
		{"float large", float64(1e21), "1000000000000000000000", true},
		{"number literal", json.Number("34"), "34", true},
		{"number literal large", json.Number("123456789012345678901"), "123456789012345678901", true},
		{"number with exponent", json.Number("3.4e1"), "34", true},
		{"number with fraction", json.Number("34.0"), "34", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeID(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeID(%v) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeIDAgreesAcrossTypes(t *testing.T) {
	inputs := []any{34, int64(34), float64(34), json.Number("34"), "34"}
	for _, in := range inputs {
		if got, _ := NormalizeID(in); got != "34" {
			t.Errorf("NormalizeID(%T %v) = %q, want %q", in, in, got, "34")
		}
	}
}

func TestHasIdentity(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{"", false},
		{0, false},
		{float64(0), false},
		{json.Number("0"), false},
		{"0", true},
		{1, true},
		{"abc", true},
	}
	for _, tt := range tests {
		if got := hasIdentity(tt.in); got != tt.want {
			t.Errorf("hasIdentity(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestColorForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{0, Palette[0]},
		{1, Palette[1]},
		{4, Palette[4]},
		{5, Palette[0]},
		{12, Palette[2]},
		{-1, Palette[4]},
		{-5, Palette[0]},
	}
	for _, tt := range tests {
		if got := ColorForLevel(tt.level); got != tt.want {
			t.Errorf("ColorForLevel(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}
