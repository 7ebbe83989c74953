package core

import (
	"math"
	"testing"
)

func TestDefaultSurface(t *testing.T) {
	s := DefaultSurface()

	if s.WidthPx != 869 {
		t.Errorf("WidthPx mismatch: got %d, want 869", s.WidthPx)
	}
	if s.HeightPx != 359 {
		t.Errorf("HeightPx mismatch: got %d, want 359", s.HeightPx)
	}

	wantRadius := 23 / (2 * math.Pi)
	if math.Abs(s.RadiusCm-wantRadius) > 1e-9 {
		t.Errorf("RadiusCm mismatch: got %f, want %f", s.RadiusCm, wantRadius)
	}

	// The cylinder circumference must equal the wrap length so the texture
	// covers it exactly once.
	if got := 2 * math.Pi * s.RadiusCm; math.Abs(got-s.CircumferenceCm) > 1e-9 {
		t.Errorf("circumference mismatch: got %f, want %f", got, s.CircumferenceCm)
	}
}

func TestSurfaceCenter(t *testing.T) {
	x, y := DefaultSurface().Center()
	if x != 434.5 || y != 179.5 {
		t.Errorf("Center mismatch: got (%f, %f), want (434.5, 179.5)", x, y)
	}
}

func TestNewSurface_Custom(t *testing.T) {
	s := NewSurface(2.54, 5.08, 100)
	if s.WidthPx != 100 || s.HeightPx != 200 {
		t.Errorf("size mismatch: got %dx%d, want 100x200", s.WidthPx, s.HeightPx)
	}
}

func TestNormalizeRotation(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{45, 45},
		{360, 0},
		{370, 10},
		{-90, 270},
		{-720, 0},
	}
	for _, tt := range tests {
		if got := NormalizeRotation(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeRotation(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestValidColor(t *testing.T) {
	valid := []string{"#000000", "#FFFFFF", "#ef4444", "#aBc123"}
	for _, c := range valid {
		if !ValidColor(c) {
			t.Errorf("ValidColor(%q) = false, want true", c)
		}
	}
	invalid := []string{"", "000000", "#fff", "#GGGGGG", "#1234567", "red"}
	for _, c := range invalid {
		if ValidColor(c) {
			t.Errorf("ValidColor(%q) = true, want false", c)
		}
	}
}

func TestLayerClone(t *testing.T) {
	l := Layer{
		ID:        "a",
		Kind:      KindText,
		TextAttrs: &TextAttrs{Text: "hi", FontSize: 24},
	}
	c := l.Clone()
	c.TextAttrs.Text = "changed"
	if l.TextAttrs.Text != "hi" {
		t.Errorf("Clone shares TextAttrs: original text became %q", l.TextAttrs.Text)
	}
}

func TestTextLines(t *testing.T) {
	lines := TextAttrs{Text: "a\nbc\n"}.Lines()
	if len(lines) != 3 || lines[0] != "a" || lines[1] != "bc" || lines[2] != "" {
		t.Errorf("Lines mismatch: got %q", lines)
	}
}
