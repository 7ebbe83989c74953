package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"mug-studio/core"
	"mug-studio/raster"

	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"
)

const previewImage = "design"

// Build renders ls afresh and packages the result as a print export. The
// layers are taken as given, so the export reflects exactly that snapshot
// even when a debounced render is still pending.
func Build(sessionID string, surface core.Surface, ls []core.Layer, r *raster.Rasterizer) (*core.Export, error) {
	png, err := r.RenderPNG(ls)
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	pdf, err := PrintPDF(surface, png)
	if err != nil {
		return nil, err
	}
	if ls == nil {
		ls = []core.Layer{}
	}
	layersJSON, err := json.Marshal(ls)
	if err != nil {
		return nil, fmt.Errorf("encode layers: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"layers":     len(ls),
		"png_length": len(png),
		"pdf_length": len(pdf),
	}).Info("Export built")

	return &core.Export{
		SessionID:  sessionID,
		Surface:    surface,
		Layers:     layersJSON,
		PreviewPNG: png,
		PrintPDF:   pdf,
		CreatedAt:  time.Now(),
	}, nil
}

// PageSize returns the physical wrap of the mug in millimetres.
func PageSize(surface core.Surface) (w, h float64) {
	return surface.CircumferenceCm * 10, surface.HeightCm * 10
}

// PrintPDF places the design PNG full bleed on a single page the size of
// the printable wrap.
func PrintPDF(surface core.Surface, png []byte) ([]byte, error) {
	w, h := PageSize(surface)
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.SetTitle("Mug design", true)
	p.SetCreator("mug-studio", true)
	p.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader(previewImage, opts, bytes.NewReader(png))
	p.ImageOptions(previewImage, 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
