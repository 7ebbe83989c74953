package layers

import (
	"image"
	"math"

	"mug-studio/core"
)

const (
	DefaultText       = "Double Click to Edit"
	DefaultFontSize   = 24.0
	DefaultFontFamily = "Inter"
	DefaultFill       = "#000000"

	// defaultTextOffset shifts a new text layer left of centre by roughly
	// half the width of the placeholder text.
	defaultTextOffset = 100.0

	// MaxUploadDim bounds the longest side of a freshly uploaded image.
	MaxUploadDim = 300.0

	GeneratedOffset = 50.0
	GeneratedSize   = 250.0
)

// FontFamilies lists the families offered in the properties panel.
var FontFamilies = []string{
	"Inter",
	"Arial",
	"Times New Roman",
	"Courier New",
	"Verdana",
	"Georgia",
	"Comic Sans MS",
}

// Palette is the preset colour list offered for text fill.
var Palette = []string{
	"#000000", "#FFFFFF", "#334155", "#94A3B8",
	"#DC2626", "#EA580C", "#D97706", "#65A30D",
	"#059669", "#0891B2", "#2563EB", "#4F46E5",
	"#7C3AED", "#C026D3", "#DB2777", "#E11D48",
}

// NewTextLayer returns the placeholder text layer created by "add text".
func NewTextLayer(s core.Surface) core.Layer {
	cx, cy := s.Center()
	return core.Layer{
		Kind:      core.KindText,
		X:         cx - defaultTextOffset,
		Y:         cy,
		ScaleX:    1,
		ScaleY:    1,
		Draggable: true,
		TextAttrs: &core.TextAttrs{
			Text:       DefaultText,
			FontSize:   DefaultFontSize,
			FontFamily: DefaultFontFamily,
			Fill:       DefaultFill,
			Align:      core.AlignCenter,
		},
	}
}

// FitUpload scales w×h down so that neither side exceeds MaxUploadDim.
// Images already within the bound keep their natural size.
func FitUpload(w, h float64) (float64, float64) {
	if w <= MaxUploadDim && h <= MaxUploadDim {
		return w, h
	}
	ratio := math.Min(MaxUploadDim/w, MaxUploadDim/h)
	return w * ratio, h * ratio
}

// NewUploadedImageLayer places an uploaded image centred on the surface.
func NewUploadedImageLayer(s core.Surface, src string, img image.Image) core.Layer {
	b := img.Bounds()
	w, h := FitUpload(float64(b.Dx()), float64(b.Dy()))
	cx, cy := s.Center()
	return imageLayer(src, img, cx-w/2, cy-h/2, w, h)
}

// NewGeneratedImageLayer places a generated image at a fixed offset.
func NewGeneratedImageLayer(src string, img image.Image) core.Layer {
	return imageLayer(src, img, GeneratedOffset, GeneratedOffset, GeneratedSize, GeneratedSize)
}

func imageLayer(src string, img image.Image, x, y, w, h float64) core.Layer {
	return core.Layer{
		Kind:      core.KindImage,
		X:         x,
		Y:         y,
		ScaleX:    1,
		ScaleY:    1,
		Draggable: true,
		ImageAttrs: &core.ImageAttrs{
			Src:     src,
			Width:   w,
			Height:  h,
			Decoded: img,
		},
	}
}
