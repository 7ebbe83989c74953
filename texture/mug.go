package texture

import "mug-studio/core"

const (
	MugRadialSegments = 64
	wallThickness     = 0.1
	bottomThickness   = 0.2
	interiorColor     = "#f1f5f9"
)

type Side string

const (
	FrontSide Side = "front"
	BackSide  Side = "back"
)

// PartMaterial is the material of an untextured mug part.
type PartMaterial struct {
	Color     string  `json:"color"`
	Roughness float64 `json:"roughness"`
	Side      Side    `json:"side"`
}

// Part is a cylindrical piece of the mug, positioned inside the mug group.
type Part struct {
	Position [3]float64   `json:"position"`
	Geometry CylinderSpec `json:"geometry"`
	Material PartMaterial `json:"material"`
}

// Handle is a tube swept along a smooth curve through Points, placed at
// the outer wall.
type Handle struct {
	Position        [3]float64   `json:"position"`
	Points          [][3]float64 `json:"points"`
	TubularSegments int          `json:"tubularSegments"`
	Radius          float64      `json:"radius"`
	RadialSegments  int          `json:"radialSegments"`
	Material        PartMaterial `json:"material"`
}

// Mug is the 3D model the design is previewed on. Only Body carries the
// design texture; the other parts are cosmetic.
type Mug struct {
	Position [3]float64 `json:"position"`
	Body     Part       `json:"body"`
	Inner    Part       `json:"inner"`
	Bottom   Part       `json:"bottom"`
	Handle   Handle     `json:"handle"`
}

// NewMug builds the mug for a design surface. The body circumference equals
// the surface circumference so the texture wraps exactly once.
func NewMug(s core.Surface) Mug {
	r, h := s.RadiusCm, s.HeightCm
	inner := r - wallThickness
	return Mug{
		Position: [3]float64{0, -h / 2, 0},
		Body: Part{
			Position: [3]float64{0, h / 2, 0},
			Geometry: CylinderSpec{
				RadiusTop: r, RadiusBottom: r, Height: h,
				RadialSegments: MugRadialSegments, HeightSegments: 1, OpenEnded: true,
			},
			Material: PartMaterial{Color: "#ffffff", Roughness: 0.3, Side: FrontSide},
		},
		Inner: Part{
			Position: [3]float64{0, h / 2, 0},
			Geometry: CylinderSpec{
				RadiusTop: inner, RadiusBottom: inner, Height: h,
				RadialSegments: MugRadialSegments, HeightSegments: 1, OpenEnded: true,
			},
			Material: PartMaterial{Color: interiorColor, Roughness: 0.5, Side: BackSide},
		},
		Bottom: Part{
			Position: [3]float64{0, bottomThickness, 0},
			Geometry: CylinderSpec{
				RadiusTop: inner, RadiusBottom: inner, Height: bottomThickness,
				RadialSegments: MugRadialSegments, HeightSegments: 1,
			},
			Material: PartMaterial{Color: interiorColor, Roughness: 1, Side: FrontSide},
		},
		Handle: Handle{
			Position: [3]float64{r, h / 2, 0},
			Points: [][3]float64{
				{-0.1, 2.2, 0},
				{0.9, 2.6, 0},
				{1.8, 1.5, 0},
				{1.8, -1.2, 0},
				{0.9, -2.6, 0},
				{-0.1, -2.2, 0},
			},
			TubularSegments: 64,
			Radius:          0.22,
			RadialSegments:  24,
			Material:        PartMaterial{Color: "#ffffff", Roughness: 0.2, Side: FrontSide},
		},
	}
}
