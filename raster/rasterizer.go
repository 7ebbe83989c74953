package raster

import (
	"fmt"
	"image"
	"math"

	"mug-studio/core"
	"mug-studio/layers"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// DefaultPixelRatio renders the texture at twice the design resolution.
const DefaultPixelRatio = 2.0

type Options struct {
	// PixelRatio multiplies the design surface size. Values below 1 are
	// raised to 1.
	PixelRatio float64
	// Background is the #RRGGBB colour behind all layers. Defaults to white.
	Background string
}

// Rasterizer flattens a layer collection into a bitmap of the design
// surface. It holds no per-render state and is safe for concurrent use.
type Rasterizer struct {
	surface    core.Surface
	ratio      float64
	background gg.RGBA
	fonts      *FontBook
}

func NewRasterizer(surface core.Surface, fonts *FontBook, opts Options) *Rasterizer {
	ratio := opts.PixelRatio
	if ratio == 0 {
		ratio = DefaultPixelRatio
	}
	if ratio < 1 {
		ratio = 1
	}
	bg := gg.White
	if opts.Background != "" && core.ValidColor(opts.Background) {
		bg = gg.Hex(opts.Background)
	}
	return &Rasterizer{surface: surface, ratio: ratio, background: bg, fonts: fonts}
}

func (r *Rasterizer) PixelRatio() float64 { return r.ratio }

// Size returns the device size of rendered bitmaps.
func (r *Rasterizer) Size() (int, int) {
	return int(math.Round(float64(r.surface.WidthPx) * r.ratio)),
		int(math.Round(float64(r.surface.HeightPx) * r.ratio))
}

// Render draws ls in order onto an opaque background. Image layers without
// decodable pixels are skipped.
func (r *Rasterizer) Render(ls []core.Layer) (*image.RGBA, error) {
	w, h := r.Size()
	dc := gg.NewContext(w, h)
	defer func() { _ = dc.Close() }()
	dc.ClearWithColor(r.background)
	canvas, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("unexpected canvas type %T", dc.Image())
	}

	for _, l := range ls {
		switch l.Kind {
		case core.KindImage:
			r.drawImage(canvas, l)
		case core.KindText:
			r.drawText(canvas, l)
		default:
			logrus.WithField("kind", l.Kind).Warn("Skipping layer of unknown kind")
		}
	}
	return canvas, nil
}

// RenderPNG renders ls and encodes the result as PNG.
func (r *Rasterizer) RenderPNG(ls []core.Layer) ([]byte, error) {
	img, err := r.Render(ls)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

func (r *Rasterizer) drawImage(canvas *image.RGBA, l core.Layer) {
	src := l.ImageAttrs.Decoded
	if src == nil {
		img, err := DecodeDataURL(l.ImageAttrs.Src)
		if err != nil {
			logrus.WithField("layer_id", l.ID).Debug("Image layer has no pixels yet, skipping")
			return
		}
		src = img
	}
	b := src.Bounds()
	if b.Empty() {
		return
	}

	// source pixels -> layer-local units
	local := mat.NewDense(3, 3, []float64{
		l.ImageAttrs.Width / float64(b.Dx()), 0, -float64(b.Min.X) * l.ImageAttrs.Width / float64(b.Dx()),
		0, l.ImageAttrs.Height / float64(b.Dy()), -float64(b.Min.Y) * l.ImageAttrs.Height / float64(b.Dy()),
		0, 0, 1,
	})
	draw.BiLinear.Transform(canvas, r.sourceToDevice(l, local), src, b, draw.Over, nil)
}

func (r *Rasterizer) drawText(canvas *image.RGBA, l core.Layer) {
	t := *l.TextAttrs
	if t.Text == "" {
		return
	}
	if !r.fonts.Has(t.FontFamily) {
		logrus.WithFields(logrus.Fields{
			"layer_id":    l.ID,
			"font_family": t.FontFamily,
		}).Debug("Unknown font family, using fallback face")
	}
	size := t.FontSize * r.ratio
	face := r.fonts.Face(t.FontFamily, size)
	m := face.Metrics()

	lines := t.Lines()
	widths := make([]float64, len(lines))
	block := 0.0
	for i, line := range lines {
		widths[i] = face.Advance(line)
		block = math.Max(block, widths[i])
	}

	// Glyphs may overhang the line box, so the offscreen buffer keeps a
	// margin of one font size around the block.
	pad := math.Ceil(size)
	bw := int(math.Ceil(block)) + 2*int(pad)
	bh := int(math.Ceil(size*float64(len(lines)))) + 2*int(pad)
	buf := image.NewRGBA(image.Rect(0, 0, bw, bh))
	col := gg.Hex(t.Fill).Color()

	for i, line := range lines {
		if line == "" {
			continue
		}
		x := pad
		switch t.Align {
		case core.AlignCenter:
			x += (block - widths[i]) / 2
		case core.AlignRight:
			x += block - widths[i]
		}
		// each line is vertically centred in a box one font size tall
		baseline := pad + (float64(i)+0.5)*size + (m.Ascent-m.Descent)/2
		text.Draw(buf, line, face, x, baseline, col)
	}

	// buffer pixels -> layer-local units
	local := mat.NewDense(3, 3, []float64{
		1 / r.ratio, 0, -pad / r.ratio,
		0, 1 / r.ratio, -pad / r.ratio,
		0, 0, 1,
	})
	draw.BiLinear.Transform(canvas, r.sourceToDevice(l, local), buf, buf.Bounds(), draw.Over, nil)
}

// sourceToDevice composes pixel ratio · layer transform · local into the
// affine form expected by x/image/draw.
func (r *Rasterizer) sourceToDevice(l core.Layer, local *mat.Dense) f64.Aff3 {
	device := mat.NewDense(3, 3, []float64{
		r.ratio, 0, 0,
		0, r.ratio, 0,
		0, 0, 1,
	})
	var placed, m mat.Dense
	placed.Mul(device, layers.Matrix(l))
	m.Mul(&placed, local)
	return f64.Aff3{
		m.At(0, 0), m.At(0, 1), m.At(0, 2),
		m.At(1, 0), m.At(1, 1), m.At(1, 2),
	}
}
