package layers

import (
	"math"
	"testing"

	"mug-studio/core"
)

func TestContains_RotatedImage(t *testing.T) {
	l := imageLayer("", newImage(100, 20), 100, 100, 100, 20)
	l.Rotation = 90

	// Rotated 90° clockwise around its top-left corner, the box spans
	// x in [80, 100] and y in [100, 200].
	if !Contains(l, nil, 90, 150) {
		t.Error("point inside rotated box reported outside")
	}
	if Contains(l, nil, 150, 110) {
		t.Error("point inside the unrotated box reported inside")
	}
}

func TestCorners_Scale(t *testing.T) {
	l := imageLayer("", newImage(10, 10), 5, 5, 10, 10)
	l.ScaleX, l.ScaleY = 2, 3
	c := Corners(l, nil)
	want := [4][2]float64{{5, 5}, {25, 5}, {25, 35}, {5, 35}}
	for i := range c {
		if math.Abs(c[i][0]-want[i][0]) > 1e-9 || math.Abs(c[i][1]-want[i][1]) > 1e-9 {
			t.Errorf("corner %d mismatch: got %v, want %v", i, c[i], want[i])
		}
	}
}

func TestHitTest_TopmostWins(t *testing.T) {
	s := NewStore(nil)
	bottom := addImage(t, s, 0, 0, 100, 100)
	top := addImage(t, s, 50, 50, 100, 100)

	got, ok := s.HitTest(75, 75)
	if !ok || got.ID != top.ID {
		t.Errorf("HitTest overlap: got %q, want %q", got.ID, top.ID)
	}
	got, ok = s.HitTest(10, 10)
	if !ok || got.ID != bottom.ID {
		t.Errorf("HitTest bottom: got %q, want %q", got.ID, bottom.ID)
	}
	if _, ok := s.HitTest(500, 300); ok {
		t.Error("HitTest on background found a layer")
	}
}

func TestPointerDown_BackgroundClearsSelection(t *testing.T) {
	s := NewStore(nil)
	a := addImage(t, s, 0, 0, 100, 100)
	v := s.Version()

	s.ClearSelection()
	if l, ok := s.PointerDown(20, 20); !ok || l.ID != a.ID || s.SelectedID() != a.ID {
		t.Errorf("PointerDown on layer did not select it")
	}
	if _, ok := s.PointerDown(800, 300); ok || s.SelectedID() != "" {
		t.Errorf("PointerDown on background did not clear selection")
	}
	if s.Version() != v {
		t.Error("pointer selection changed the content version")
	}
}

func TestEstimateMeasurer(t *testing.T) {
	w, h := estimateMeasurer{}.MeasureText(core.TextAttrs{Text: "ab\nabcd", FontSize: 10})
	if math.Abs(w-24) > 1e-9 || h != 20 {
		t.Errorf("MeasureText mismatch: got (%f, %f), want (24, 20)", w, h)
	}
}
