package core

import "math"

const (
	// DefaultCircumferenceCm is the printable wrap length of a standard 11oz mug.
	DefaultCircumferenceCm = 23.0
	// DefaultHeightCm is the printable height of a standard 11oz mug.
	DefaultHeightCm = 9.5
	// DefaultDPI is the reference screen density the design surface is laid out at.
	DefaultDPI = 96.0

	cmPerInch = 2.54
)

// Surface is the flattened unwrap of the mug's cylindrical side. It is
// computed once per session and never changes afterwards.
type Surface struct {
	CircumferenceCm float64 `json:"circumferenceCm"`
	HeightCm        float64 `json:"heightCm"`
	DPI             float64 `json:"dpi"`
	PixelsPerCm     float64 `json:"pixelsPerCm"`
	WidthPx         int     `json:"widthPx"`
	HeightPx        int     `json:"heightPx"`
	// RadiusCm is the radius of the 3D cylinder; its circumference equals
	// CircumferenceCm so the texture wraps exactly once.
	RadiusCm float64 `json:"radiusCm"`
}

// NewSurface converts physical mug dimensions into design-surface pixels.
func NewSurface(circumferenceCm, heightCm, dpi float64) Surface {
	ppcm := dpi / cmPerInch
	return Surface{
		CircumferenceCm: circumferenceCm,
		HeightCm:        heightCm,
		DPI:             dpi,
		PixelsPerCm:     ppcm,
		WidthPx:         int(math.Round(circumferenceCm * ppcm)),
		HeightPx:        int(math.Round(heightCm * ppcm)),
		RadiusCm:        circumferenceCm / (2 * math.Pi),
	}
}

func DefaultSurface() Surface {
	return NewSurface(DefaultCircumferenceCm, DefaultHeightCm, DefaultDPI)
}

// Center returns the middle of the design surface in pixels.
func (s Surface) Center() (float64, float64) {
	return float64(s.WidthPx) / 2, float64(s.HeightPx) / 2
}
