package core

import (
	"image"
	"math"
	"regexp"
	"strings"
)

// LayerKind tags which attribute set a Layer carries.
type LayerKind string

const (
	KindText  LayerKind = "text"
	KindImage LayerKind = "image"
)

// Align is the horizontal alignment of text lines inside a text block.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// MinDimension is the smallest width or height, in design pixels, a layer
// may be resized to.
const MinDimension = 5.0

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type (
	// TextAttrs holds the text-only attributes of a layer.
	TextAttrs struct {
		Text       string  `json:"text"`
		FontSize   float64 `json:"fontSize"`
		FontFamily string  `json:"fontFamily"`
		Fill       string  `json:"fill"`
		Align      Align   `json:"align"`
	}

	// ImageAttrs holds the image-only attributes of a layer. Decoded is
	// filled once when the layer is created and is never serialized.
	ImageAttrs struct {
		Src     string      `json:"src"`
		Width   float64     `json:"width"`
		Height  float64     `json:"height"`
		Decoded image.Image `json:"-"`
	}

	// Layer is one independently transformable element of the design.
	// Exactly one of TextAttrs or ImageAttrs is set, matching Kind.
	Layer struct {
		ID        string    `json:"id"`
		Kind      LayerKind `json:"type"`
		X         float64   `json:"x"`
		Y         float64   `json:"y"`
		Rotation  float64   `json:"rotation"`
		ScaleX    float64   `json:"scaleX"`
		ScaleY    float64   `json:"scaleY"`
		Draggable bool      `json:"draggable"`
		*TextAttrs
		*ImageAttrs
	}

	// Patch is a partial update from the properties panel. Nil fields are
	// left untouched.
	Patch struct {
		X          *float64 `json:"x,omitempty"`
		Y          *float64 `json:"y,omitempty"`
		Rotation   *float64 `json:"rotation,omitempty"`
		Text       *string  `json:"text,omitempty"`
		FontSize   *float64 `json:"fontSize,omitempty"`
		FontFamily *string  `json:"fontFamily,omitempty"`
		Fill       *string  `json:"fill,omitempty"`
		Align      *Align   `json:"align,omitempty"`
		Width      *float64 `json:"width,omitempty"`
		Height     *float64 `json:"height,omitempty"`
	}

	// Transform is the geometry reported when an interactive resize or
	// rotate gesture ends.
	Transform struct {
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Rotation float64 `json:"rotation"`
		ScaleX   float64 `json:"scaleX"`
		ScaleY   float64 `json:"scaleY"`
	}
)

// Clone returns a copy that shares no mutable state with l. The decoded
// pixels are shared since they are never written after creation.
func (l Layer) Clone() Layer {
	if l.TextAttrs != nil {
		t := *l.TextAttrs
		l.TextAttrs = &t
	}
	if l.ImageAttrs != nil {
		i := *l.ImageAttrs
		l.ImageAttrs = &i
	}
	return l
}

// Lines splits the text of a text layer on newlines.
func (t TextAttrs) Lines() []string {
	return strings.Split(t.Text, "\n")
}

// ValidColor reports whether s is a #RRGGBB colour.
func ValidColor(s string) bool {
	return hexColor.MatchString(s)
}

// ValidAlign reports whether a is one of the supported alignments.
func ValidAlign(a Align) bool {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return true
	}
	return false
}

// NormalizeRotation wraps degrees into [0, 360).
func NormalizeRotation(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}
