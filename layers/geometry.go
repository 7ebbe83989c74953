package layers

import (
	"math"

	"mug-studio/core"

	"gonum.org/v1/gonum/mat"
)

// Size returns the unscaled local width and height of l.
func Size(l core.Layer, m Measurer) (float64, float64) {
	switch l.Kind {
	case core.KindImage:
		return l.ImageAttrs.Width, l.ImageAttrs.Height
	case core.KindText:
		if m == nil {
			m = estimateMeasurer{}
		}
		return m.MeasureText(*l.TextAttrs)
	}
	return 0, 0
}

// Matrix returns the affine transform from layer-local coordinates to the
// design surface: translate(x, y) · rotate(rotation) · scale(scaleX, scaleY).
func Matrix(l core.Layer) *mat.Dense {
	sin, cos := math.Sincos(l.Rotation * math.Pi / 180)
	sx, sy := l.ScaleX, l.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return mat.NewDense(3, 3, []float64{
		cos * sx, -sin * sy, l.X,
		sin * sx, cos * sy, l.Y,
		0, 0, 1,
	})
}

// Contains reports whether the design-surface point lies inside the
// transformed box of l.
func Contains(l core.Layer, m Measurer, x, y float64) bool {
	w, h := Size(l, m)
	if w <= 0 || h <= 0 {
		return false
	}

	var inv mat.Dense
	if err := inv.Inverse(Matrix(l)); err != nil {
		return false
	}
	var local mat.VecDense
	local.MulVec(&inv, mat.NewVecDense(3, []float64{x, y, 1}))

	lx, ly := local.AtVec(0), local.AtVec(1)
	return lx >= 0 && lx <= w && ly >= 0 && ly <= h
}

// Corners returns the four transformed corners of l in the order
// top-left, top-right, bottom-right, bottom-left.
func Corners(l core.Layer, m Measurer) [4][2]float64 {
	w, h := Size(l, m)
	local := mat.NewDense(3, 4, []float64{
		0, w, w, 0,
		0, 0, h, h,
		1, 1, 1, 1,
	})
	var world mat.Dense
	world.Mul(Matrix(l), local)

	var out [4][2]float64
	for i := range out {
		out[i] = [2]float64{world.At(0, i), world.At(1, i)}
	}
	return out
}

// estimateMeasurer approximates text boxes when no font metrics are
// available: an average glyph is 0.6 em wide and each line is 1 em tall.
type estimateMeasurer struct{}

func (estimateMeasurer) MeasureText(t core.TextAttrs) (float64, float64) {
	lines := t.Lines()
	widest := 0
	for _, line := range lines {
		if n := len([]rune(line)); n > widest {
			widest = n
		}
	}
	return float64(widest) * t.FontSize * 0.6, float64(len(lines)) * t.FontSize
}
