package export

import (
	"bytes"
	"encoding/json"
	"image/png"
	"testing"

	"mug-studio/core"
	"mug-studio/layers"
	"mug-studio/raster"
)

func TestBuild(t *testing.T) {
	fonts, err := raster.NewFontBook()
	if err != nil {
		t.Fatalf("NewFontBook() failed: %v", err)
	}
	s := core.DefaultSurface()
	r := raster.NewRasterizer(s, fonts, raster.Options{PixelRatio: 1})
	text := layers.NewTextLayer(s)
	text.ID = "t1"

	e, err := Build("sess", s, []core.Layer{text}, r)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if e.SessionID != "sess" || e.CreatedAt.IsZero() {
		t.Errorf("export metadata mismatch: %+v", e.Summary())
	}

	img, err := png.Decode(bytes.NewReader(e.PreviewPNG))
	if err != nil {
		t.Fatalf("preview is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != s.WidthPx || b.Dy() != s.HeightPx {
		t.Errorf("preview size: got %v", b)
	}

	if !bytes.HasPrefix(e.PrintPDF, []byte("%PDF-")) {
		t.Errorf("print file is not a PDF: %q", e.PrintPDF[:8])
	}

	var ls []core.Layer
	if err := json.Unmarshal(e.Layers, &ls); err != nil {
		t.Fatalf("layers are not JSON: %v", err)
	}
	if len(ls) != 1 || ls[0].ID != "t1" || ls[0].Text != layers.DefaultText {
		t.Errorf("layers mismatch: %+v", ls)
	}
}

func TestBuild_Empty(t *testing.T) {
	fonts, _ := raster.NewFontBook()
	s := core.DefaultSurface()
	e, err := Build("sess", s, nil, raster.NewRasterizer(s, fonts, raster.Options{PixelRatio: 1}))
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if string(e.Layers) != "[]" {
		t.Errorf("layers of an empty design: got %s, want []", e.Layers)
	}
}

func TestPageSize(t *testing.T) {
	w, h := PageSize(core.DefaultSurface())
	if w != 230 || h != 95 {
		t.Errorf("PageSize() = %vx%v, want 230x95", w, h)
	}
}

func TestPrintPDF_BadImage(t *testing.T) {
	if _, err := PrintPDF(core.DefaultSurface(), []byte("not a png")); err == nil {
		t.Error("PrintPDF() accepted garbage image bytes")
	}
}
