package texture

import (
	"math"

	"mug-studio/core"
)

// Vertex is one mesh vertex with its normal and texture coordinate.
type Vertex struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	NX float64 `json:"nx"`
	NY float64 `json:"ny"`
	NZ float64 `json:"nz"`
	U  float64 `json:"u"`
	V  float64 `json:"v"`
}

type Mesh struct {
	Vertices []Vertex `json:"vertices"`
	Indices  []uint32 `json:"indices"`
}

// CylinderSpec describes a cylinder centred on the origin with its axis
// along Y.
type CylinderSpec struct {
	RadiusTop      float64 `json:"radiusTop"`
	RadiusBottom   float64 `json:"radiusBottom"`
	Height         float64 `json:"height"`
	RadialSegments int     `json:"radialSegments"`
	HeightSegments int     `json:"heightSegments"`
	OpenEnded      bool    `json:"openEnded"`
}

// Mesh builds the cylinder. The side wall carries u = i/RadialSegments
// around the circumference (u = 0 and u = 1 are separate vertices at the
// same seam position) and v = 1 at the top edge down to v = 0 at the
// bottom edge.
func (c CylinderSpec) Mesh() Mesh {
	radial := max(c.RadialSegments, 3)
	rows := max(c.HeightSegments, 1)
	half := c.Height / 2
	slope := (c.RadiusBottom - c.RadiusTop) / c.Height

	var m Mesh
	grid := make([][]uint32, rows+1)
	for y := 0; y <= rows; y++ {
		v := float64(y) / float64(rows)
		r := v*(c.RadiusBottom-c.RadiusTop) + c.RadiusTop
		grid[y] = make([]uint32, radial+1)
		for x := 0; x <= radial; x++ {
			u := float64(x) / float64(radial)
			sin, cos := math.Sincos(u * 2 * math.Pi)
			nx, ny, nz := normalize(sin, slope, cos)
			grid[y][x] = uint32(len(m.Vertices))
			m.Vertices = append(m.Vertices, Vertex{
				X: r * sin, Y: -v*c.Height + half, Z: r * cos,
				NX: nx, NY: ny, NZ: nz,
				U: u, V: 1 - v,
			})
		}
	}
	for x := 0; x < radial; x++ {
		for y := 0; y < rows; y++ {
			a, b := grid[y][x], grid[y+1][x]
			cc, d := grid[y+1][x+1], grid[y][x+1]
			m.Indices = append(m.Indices, a, b, d, b, cc, d)
		}
	}

	if !c.OpenEnded {
		if c.RadiusTop > 0 {
			m.cap(radial, c.RadiusTop, half, true)
		}
		if c.RadiusBottom > 0 {
			m.cap(radial, c.RadiusBottom, -half, false)
		}
	}
	return m
}

func (m *Mesh) cap(radial int, radius, y float64, top bool) {
	sign := -1.0
	if top {
		sign = 1
	}
	centre := uint32(len(m.Vertices))
	for x := 1; x <= radial; x++ {
		m.Vertices = append(m.Vertices, Vertex{Y: y, NY: sign, U: 0.5, V: 0.5})
	}
	rim := uint32(len(m.Vertices))
	for x := 0; x <= radial; x++ {
		sin, cos := math.Sincos(float64(x) / float64(radial) * 2 * math.Pi)
		m.Vertices = append(m.Vertices, Vertex{
			X: radius * sin, Y: y, Z: radius * cos,
			NY: sign,
			U:  cos*0.5 + 0.5, V: sin*0.5*sign + 0.5,
		})
	}
	for x := uint32(0); x < uint32(radial); x++ {
		c, i := centre+x, rim+x
		if top {
			m.Indices = append(m.Indices, i, i+1, c)
		} else {
			m.Indices = append(m.Indices, i+1, i, c)
		}
	}
}

func normalize(x, y, z float64) (float64, float64, float64) {
	l := math.Sqrt(x*x + y*y + z*z)
	if l == 0 {
		return 0, 0, 0
	}
	return x / l, y / l, z / l
}

// SurfacePoint maps a design-surface pixel onto the mug body: the texture
// coordinate it is sampled at and the point of the side wall it lands on,
// with the body centred on the origin.
func SurfacePoint(s core.Surface, x, y float64) (u, v float64, pos [3]float64) {
	u = x / float64(s.WidthPx)
	v = 1 - y/float64(s.HeightPx)
	sin, cos := math.Sincos(u * 2 * math.Pi)
	pos = [3]float64{
		s.RadiusCm * sin,
		(v - 0.5) * s.HeightCm,
		s.RadiusCm * cos,
	}
	return u, v, pos
}
