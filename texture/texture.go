package texture

import (
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type WrapMode string

const (
	ClampToEdge    WrapMode = "clamp"
	Repeat         WrapMode = "repeat"
	MirroredRepeat WrapMode = "mirror"
)

type Filter string

const (
	Nearest Filter = "nearest"
	Linear  Filter = "linear"
)

type ColorSpace string

const (
	LinearSRGB ColorSpace = "linear"
	SRGB       ColorSpace = "srgb"
)

// Params are the sampler settings applied to the mug texture.
type Params struct {
	WrapS      WrapMode   `json:"wrapS"`
	WrapT      WrapMode   `json:"wrapT"`
	RepeatX    float64    `json:"repeatX"`
	RepeatY    float64    `json:"repeatY"`
	OffsetX    float64    `json:"offsetX"`
	OffsetY    float64    `json:"offsetY"`
	MinFilter  Filter     `json:"minFilter"`
	MagFilter  Filter     `json:"magFilter"`
	ColorSpace ColorSpace `json:"colorSpace"`
}

// DefaultParams wraps horizontally around the cylinder, clamps vertically,
// maps the bitmap exactly once and keeps sRGB bytes as authored. A negative
// horizontal repeat would mirror the design, so it is always +1.
func DefaultParams() Params {
	return Params{
		WrapS:      Repeat,
		WrapT:      ClampToEdge,
		RepeatX:    1,
		RepeatY:    1,
		OffsetX:    0,
		OffsetY:    0,
		MinFilter:  Linear,
		MagFilter:  Linear,
		ColorSpace: SRGB,
	}
}

// Texture is one bitmap applied to the mug body.
type Texture struct {
	Image  *image.RGBA `json:"-"`
	Params Params      `json:"params"`
	// SourceVersion is the layer store version the bitmap was rendered from.
	SourceVersion uint64 `json:"sourceVersion"`
	// Revision increases every time a new bitmap is applied; a viewer
	// re-uploads the texture when it sees a new revision.
	Revision  uint64    `json:"revision"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	AppliedAt time.Time `json:"appliedAt"`
}

// Sample returns the texel colour at (u, v) the way a GPU sampler with the
// texture's params would. v = 1 is the top row of the bitmap.
func (t *Texture) Sample(u, v float64) color.RGBA {
	p := t.Params
	s := wrap(u*p.RepeatX+p.OffsetX, p.WrapS)
	q := wrap(v*p.RepeatY+p.OffsetY, p.WrapT)

	b := t.Image.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	x := s * w
	y := (1 - q) * h

	if p.MagFilter == Nearest {
		return t.texel(int(math.Floor(x)), int(math.Floor(y)))
	}

	// bilinear between the four nearest texel centres
	fx, fy := x-0.5, y-0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	ax, ay := fx-float64(x0), fy-float64(y0)
	c00 := t.texel(x0, y0)
	c10 := t.texel(x0+1, y0)
	c01 := t.texel(x0, y0+1)
	c11 := t.texel(x0+1, y0+1)
	mix := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-ax) + float64(b)*ax
		bot := float64(c)*(1-ax) + float64(d)*ax
		return uint8(math.Round(top*(1-ay) + bot*ay))
	}
	return color.RGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}
}

// texel reads a pixel, wrapping x with WrapS and y with WrapT.
func (t *Texture) texel(x, y int) color.RGBA {
	b := t.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	x = wrapIndex(x, w, t.Params.WrapS)
	y = wrapIndex(y, h, t.Params.WrapT)
	return t.Image.RGBAAt(b.Min.X+x, b.Min.Y+y)
}

func wrap(c float64, mode WrapMode) float64 {
	switch mode {
	case Repeat:
		return c - math.Floor(c)
	case MirroredRepeat:
		f := math.Mod(math.Abs(c), 2)
		if f > 1 {
			f = 2 - f
		}
		return f
	}
	return math.Max(0, math.Min(1, c))
}

func wrapIndex(i, n int, mode WrapMode) int {
	switch mode {
	case Repeat:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	case MirroredRepeat:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Material is the physical material of the mug body.
type Material struct {
	Color     string   `json:"color"`
	Roughness float64  `json:"roughness"`
	Metalness float64  `json:"metalness"`
	Map       *Texture `json:"map"`
}

// Mapper holds the texture currently applied to the mug. Bitmaps rendered
// from an older layer state than the current texture are discarded.
type Mapper struct {
	mu       sync.RWMutex
	current  *Texture
	revision uint64
	now      func() time.Time
}

func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// Apply installs img as the new texture with freshly set params. It
// reports false, leaving the current texture in place, when img was
// rendered from an older layer version than the current one.
func (m *Mapper) Apply(img *image.RGBA, sourceVersion uint64) (*Texture, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && sourceVersion < m.current.SourceVersion {
		logrus.WithFields(logrus.Fields{
			"source_version":  sourceVersion,
			"current_version": m.current.SourceVersion,
		}).Debug("Discarding stale texture")
		return m.current, false
	}

	m.revision++
	b := img.Bounds()
	m.current = &Texture{
		Image:         img,
		Params:        DefaultParams(),
		SourceVersion: sourceVersion,
		Revision:      m.revision,
		Width:         b.Dx(),
		Height:        b.Dy(),
		AppliedAt:     m.now(),
	}
	return m.current, true
}

// Current returns the applied texture, or nil before the first bitmap.
func (m *Mapper) Current() *Texture {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Material returns the mug body material. Without a texture the body is
// plain white.
func (m *Mapper) Material() Material {
	return Material{
		Color:     "#ffffff",
		Roughness: 0.3,
		Metalness: 0.1,
		Map:       m.Current(),
	}
}
