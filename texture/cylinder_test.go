package texture

import (
	"math"
	"testing"

	"mug-studio/core"
)

func TestCylinderMesh_OpenEnded(t *testing.T) {
	c := CylinderSpec{RadiusTop: 2, RadiusBottom: 2, Height: 4, RadialSegments: 8, HeightSegments: 1, OpenEnded: true}
	m := c.Mesh()

	if len(m.Vertices) != 9*2 {
		t.Errorf("vertex count: got %d, want 18", len(m.Vertices))
	}
	if len(m.Indices) != 8*6 {
		t.Errorf("index count: got %d, want 48", len(m.Indices))
	}
	for i, v := range m.Vertices {
		if r := math.Hypot(v.X, v.Z); math.Abs(r-2) > 1e-9 {
			t.Errorf("vertex %d off the wall: r=%f", i, r)
		}
		if v.U < 0 || v.U > 1 || v.V < 0 || v.V > 1 {
			t.Errorf("vertex %d uv out of range: (%f, %f)", i, v.U, v.V)
		}
	}
}

func TestCylinderMesh_SeamVerticesCoincide(t *testing.T) {
	c := CylinderSpec{RadiusTop: 1, RadiusBottom: 1, Height: 2, RadialSegments: 64, HeightSegments: 1, OpenEnded: true}
	m := c.Mesh()
	row := 65
	for y := 0; y < 2; y++ {
		first, last := m.Vertices[y*row], m.Vertices[y*row+64]
		if math.Abs(first.X-last.X) > 1e-9 || math.Abs(first.Y-last.Y) > 1e-9 || math.Abs(first.Z-last.Z) > 1e-9 {
			t.Errorf("row %d: seam vertices apart: %+v vs %+v", y, first, last)
		}
		if first.U != 0 || last.U != 1 {
			t.Errorf("row %d: seam u mismatch: %f, %f", y, first.U, last.U)
		}
	}
	if top, bottom := m.Vertices[0], m.Vertices[row]; top.V != 1 || bottom.V != 0 || top.Y != 1 || bottom.Y != -1 {
		t.Errorf("vertical mapping mismatch: top=%+v bottom=%+v", top, bottom)
	}
}

func TestCylinderMesh_Closed(t *testing.T) {
	c := CylinderSpec{RadiusTop: 1, RadiusBottom: 1, Height: 0.2, RadialSegments: 16, HeightSegments: 1}
	m := c.Mesh()
	side := 17 * 2
	caps := 2 * (16 + 17)
	if len(m.Vertices) != side+caps {
		t.Errorf("vertex count: got %d, want %d", len(m.Vertices), side+caps)
	}
	if len(m.Indices) != 16*6+2*16*3 {
		t.Errorf("index count: got %d", len(m.Indices))
	}
}

func TestNewMug(t *testing.T) {
	s := core.DefaultSurface()
	mug := NewMug(s)

	body := mug.Body.Geometry
	if body.RadialSegments != 64 || !body.OpenEnded || body.Height != s.HeightCm {
		t.Errorf("body geometry mismatch: %+v", body)
	}
	if got := 2 * math.Pi * body.RadiusTop; math.Abs(got-s.CircumferenceCm) > 1e-9 {
		t.Errorf("body circumference: got %f, want %f", got, s.CircumferenceCm)
	}
	if mug.Inner.Material.Side != BackSide || mug.Inner.Geometry.RadiusTop >= body.RadiusTop {
		t.Errorf("inner wall mismatch: %+v", mug.Inner)
	}
	if mug.Bottom.Geometry.OpenEnded {
		t.Error("bottom is open")
	}
	if len(mug.Handle.Points) != 6 || mug.Handle.Radius != 0.22 {
		t.Errorf("handle mismatch: %+v", mug.Handle)
	}
}
