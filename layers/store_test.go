package layers

import (
	"errors"
	"image"
	"math"
	"math/rand"
	"sync"
	"testing"

	"mug-studio/core"
)

func newImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func addImage(t *testing.T, s *Store, x, y, w, h float64) core.Layer {
	t.Helper()
	l, err := s.Add(imageLayer("data:image/png;base64,", newImage(int(w), int(h)), x, y, w, h))
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	return l
}

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestAdd_AssignsIDAndSelects(t *testing.T) {
	s := NewStore(nil)

	l, err := s.Add(NewTextLayer(core.DefaultSurface()))
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if len(l.ID) != 26 {
		t.Errorf("Add() returned invalid ID length: got %d, want 26", len(l.ID))
	}
	if got := s.SelectedID(); got != l.ID {
		t.Errorf("selection mismatch: got %q, want %q", got, l.ID)
	}
	if s.Len() != 1 {
		t.Errorf("Len mismatch: got %d, want 1", s.Len())
	}
	if !l.Draggable {
		t.Error("new layer is not draggable")
	}
}

func TestAdd_DuplicateID(t *testing.T) {
	s := NewStore(nil)
	l := NewTextLayer(core.DefaultSurface())
	l.ID = "fixed"
	if _, err := s.Add(l); err != nil {
		t.Fatalf("first Add() failed: %v", err)
	}
	if _, err := s.Add(l); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("second Add() error mismatch: got %v, want ErrDuplicateID", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len mismatch after rejected add: got %d, want 1", s.Len())
	}
}

func TestAdd_RejectsInvalid(t *testing.T) {
	s := NewStore(nil)
	tests := map[string]core.Layer{
		"unknown kind":  {Kind: "shape"},
		"text no attrs": {Kind: core.KindText},
		"bad fill": {Kind: core.KindText, TextAttrs: &core.TextAttrs{
			Text: "x", FontSize: 10, FontFamily: "Inter", Fill: "red", Align: core.AlignLeft,
		}},
		"zero font": {Kind: core.KindText, TextAttrs: &core.TextAttrs{
			Text: "x", FontSize: 0, FontFamily: "Inter", Fill: "#000000", Align: core.AlignLeft,
		}},
		"both attrs": {Kind: core.KindImage, ImageAttrs: &core.ImageAttrs{Width: 1, Height: 1}, TextAttrs: &core.TextAttrs{}},
	}
	for name, l := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Add(l); !errors.Is(err, ErrInvalidLayer) {
				t.Errorf("Add() error mismatch: got %v, want ErrInvalidLayer", err)
			}
		})
	}
	if s.Len() != 0 {
		t.Errorf("invalid layers were stored: Len = %d", s.Len())
	}
}

func TestIDsUniqueAndCountTracksAddsMinusDeletes(t *testing.T) {
	s := NewStore(nil)
	r := rand.New(rand.NewSource(42))
	surface := core.DefaultSurface()
	adds, deletes := 0, 0

	for i := 0; i < 500; i++ {
		switch r.Intn(5) {
		case 0, 1:
			if _, err := s.Add(NewTextLayer(surface)); err != nil {
				t.Fatalf("Add() failed: %v", err)
			}
			adds++
		case 2:
			addImage(t, s, 10, 10, 40, 40)
			adds++
		case 3:
			if s.DeleteSelected() {
				deletes++
			}
		case 4:
			ls := s.Layers()
			if len(ls) > 0 {
				s.Select(ls[r.Intn(len(ls))].ID)
			}
		}

		ls := s.Layers()
		if len(ls) != adds-deletes {
			t.Fatalf("step %d: Len mismatch: got %d, want %d", i, len(ls), adds-deletes)
		}
		seen := make(map[string]bool, len(ls))
		for _, l := range ls {
			if seen[l.ID] {
				t.Fatalf("step %d: duplicate id %s", i, l.ID)
			}
			seen[l.ID] = true
		}
		if sel := s.SelectedID(); sel != "" && !seen[sel] {
			t.Fatalf("step %d: selection %s refers to a missing layer", i, sel)
		}
	}
}

func TestDeleteSelected(t *testing.T) {
	s := NewStore(nil)
	a := addImage(t, s, 0, 0, 10, 10)
	b := addImage(t, s, 0, 0, 10, 10)

	s.Select(a.ID)
	if !s.DeleteSelected() {
		t.Fatal("DeleteSelected() reported nothing deleted")
	}
	if _, ok := s.Selected(); ok {
		t.Error("selection not cleared after deleting the selected layer")
	}
	if _, ok := s.Get(b.ID); !ok {
		t.Error("unselected layer was deleted")
	}
	if s.DeleteSelected() {
		t.Error("DeleteSelected() with no selection reported a deletion")
	}
}

func TestSelect_UnknownIDClearsSelection(t *testing.T) {
	s := NewStore(nil)
	addImage(t, s, 0, 0, 10, 10)
	s.Select("does-not-exist")
	if id := s.SelectedID(); id != "" {
		t.Errorf("selection mismatch: got %q, want none", id)
	}
}

func TestUpdate_StaleIDIsNoop(t *testing.T) {
	s := NewStore(nil)
	l := addImage(t, s, 0, 0, 10, 10)
	if err := s.Delete(l.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	v := s.Version()

	err := s.TransformEnd(l.ID, core.Transform{X: 1, Y: 1, ScaleX: 2, ScaleY: 2})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("TransformEnd() error mismatch: got %v, want ErrNotFound", err)
	}
	if err := s.DragEnd(l.ID, 5, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("DragEnd() error mismatch: got %v, want ErrNotFound", err)
	}
	if s.Version() != v || s.Len() != 0 {
		t.Error("update against a deleted id mutated the store")
	}
}

func TestUpdate_Patch(t *testing.T) {
	s := NewStore(nil)
	l, _ := s.Add(NewTextLayer(core.DefaultSurface()))

	align := core.AlignRight
	err := s.Update(l.ID, core.Patch{
		Text:     strPtr("Hello\nWorld"),
		Fill:     strPtr("#DC2626"),
		FontSize: floatPtr(40),
		Align:    &align,
		Rotation: floatPtr(-30),
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	got, _ := s.Get(l.ID)
	if got.TextAttrs.Text != "Hello\nWorld" || got.TextAttrs.Fill != "#DC2626" || got.TextAttrs.FontSize != 40 {
		t.Errorf("patch not applied: %+v", got.TextAttrs)
	}
	if got.Rotation != 330 {
		t.Errorf("Rotation mismatch: got %f, want 330", got.Rotation)
	}
}

func TestUpdate_ValidationIsAtomic(t *testing.T) {
	s := NewStore(nil)
	l, _ := s.Add(NewTextLayer(core.DefaultSurface()))
	v := s.Version()

	err := s.Update(l.ID, core.Patch{Text: strPtr("changed"), Fill: strPtr("not-a-colour")})
	if !errors.Is(err, ErrInvalidLayer) {
		t.Fatalf("Update() error mismatch: got %v, want ErrInvalidLayer", err)
	}
	got, _ := s.Get(l.ID)
	if got.TextAttrs.Text != DefaultText {
		t.Errorf("partial patch applied: text = %q", got.TextAttrs.Text)
	}
	if s.Version() != v {
		t.Error("rejected update bumped the version")
	}

	if err := s.Update(l.ID, core.Patch{Width: floatPtr(10)}); !errors.Is(err, ErrWrongKind) {
		t.Errorf("width on text layer: got %v, want ErrWrongKind", err)
	}
}

func TestUpdate_ImageMinimumSize(t *testing.T) {
	s := NewStore(nil)
	l := addImage(t, s, 0, 0, 100, 100)
	if err := s.Update(l.ID, core.Patch{Width: floatPtr(4)}); !errors.Is(err, ErrTooSmall) {
		t.Errorf("Update() error mismatch: got %v, want ErrTooSmall", err)
	}
	got, _ := s.Get(l.ID)
	if got.ImageAttrs.Width != 100 {
		t.Errorf("width changed by rejected update: %f", got.ImageAttrs.Width)
	}
}

func TestTransformEnd_ImageNormalizesScale(t *testing.T) {
	s := NewStore(nil)
	l := addImage(t, s, 10, 10, 100, 50)

	if err := s.TransformEnd(l.ID, core.Transform{X: 20, Y: 30, Rotation: 45, ScaleX: 2, ScaleY: 1.5}); err != nil {
		t.Fatalf("TransformEnd() failed: %v", err)
	}
	got, _ := s.Get(l.ID)
	if got.ImageAttrs.Width != 200 || got.ImageAttrs.Height != 75 {
		t.Errorf("size mismatch: got %fx%f, want 200x75", got.ImageAttrs.Width, got.ImageAttrs.Height)
	}
	if got.ScaleX != 1 || got.ScaleY != 1 {
		t.Errorf("scale not reset: got (%f, %f)", got.ScaleX, got.ScaleY)
	}
	if got.X != 20 || got.Y != 30 || got.Rotation != 45 {
		t.Errorf("geometry mismatch: got x=%f y=%f rot=%f", got.X, got.Y, got.Rotation)
	}
}

func TestTransformEnd_NoCompounding(t *testing.T) {
	s := NewStore(nil)
	l := addImage(t, s, 0, 0, 100, 100)

	tr := core.Transform{ScaleX: 2, ScaleY: 2}
	if err := s.TransformEnd(l.ID, tr); err != nil {
		t.Fatalf("TransformEnd() failed: %v", err)
	}
	once, _ := s.Get(l.ID)

	// The gesture is reported relative to the stored geometry, which now
	// carries scale 1, so committing the normalized state again is stable.
	if err := s.TransformEnd(l.ID, core.Transform{ScaleX: 1, ScaleY: 1}); err != nil {
		t.Fatalf("TransformEnd() failed: %v", err)
	}
	twice, _ := s.Get(l.ID)
	if once.ImageAttrs.Width != twice.ImageAttrs.Width || once.ImageAttrs.Height != twice.ImageAttrs.Height {
		t.Errorf("normalization compounded: %fx%f then %fx%f",
			once.ImageAttrs.Width, once.ImageAttrs.Height, twice.ImageAttrs.Width, twice.ImageAttrs.Height)
	}

	// Two successive gestures equal one combined gesture.
	a := addImage(t, s, 0, 0, 100, 100)
	b := addImage(t, s, 0, 0, 100, 100)
	_ = s.TransformEnd(a.ID, core.Transform{ScaleX: 2, ScaleY: 3})
	_ = s.TransformEnd(a.ID, core.Transform{ScaleX: 1.5, ScaleY: 0.5})
	_ = s.TransformEnd(b.ID, core.Transform{ScaleX: 3, ScaleY: 1.5})
	ga, _ := s.Get(a.ID)
	gb, _ := s.Get(b.ID)
	if math.Abs(ga.ImageAttrs.Width-gb.ImageAttrs.Width) > 1e-9 || math.Abs(ga.ImageAttrs.Height-gb.ImageAttrs.Height) > 1e-9 {
		t.Errorf("sequential gestures %fx%f differ from combined %fx%f",
			ga.ImageAttrs.Width, ga.ImageAttrs.Height, gb.ImageAttrs.Width, gb.ImageAttrs.Height)
	}
}

func TestTransformEnd_TextUsesVerticalScaleOnly(t *testing.T) {
	s := NewStore(nil)
	l, _ := s.Add(NewTextLayer(core.DefaultSurface()))

	if err := s.TransformEnd(l.ID, core.Transform{X: l.X, Y: l.Y, ScaleX: 3, ScaleY: 2}); err != nil {
		t.Fatalf("TransformEnd() failed: %v", err)
	}
	got, _ := s.Get(l.ID)
	if got.TextAttrs.FontSize != 48 {
		t.Errorf("FontSize mismatch: got %f, want 48", got.TextAttrs.FontSize)
	}
	if got.ScaleX != 1 || got.ScaleY != 1 {
		t.Errorf("scale not reset: got (%f, %f)", got.ScaleX, got.ScaleY)
	}
}

func TestTransformEnd_RejectsBelowMinimum(t *testing.T) {
	s := NewStore(nil)
	img := addImage(t, s, 0, 0, 100, 100)
	txt, _ := s.Add(NewTextLayer(core.DefaultSurface()))

	if err := s.TransformEnd(img.ID, core.Transform{X: 99, ScaleX: 0.04, ScaleY: 1}); !errors.Is(err, ErrTooSmall) {
		t.Errorf("image TransformEnd() error mismatch: got %v, want ErrTooSmall", err)
	}
	got, _ := s.Get(img.ID)
	if got.ImageAttrs.Width != 100 || got.X != 0 {
		t.Errorf("prior geometry not retained: width=%f x=%f", got.ImageAttrs.Width, got.X)
	}

	if err := s.TransformEnd(txt.ID, core.Transform{ScaleX: 1, ScaleY: 0.1}); !errors.Is(err, ErrTooSmall) {
		t.Errorf("text TransformEnd() error mismatch: got %v, want ErrTooSmall", err)
	}
	gt, _ := s.Get(txt.ID)
	if gt.TextAttrs.FontSize != DefaultFontSize {
		t.Errorf("font size changed by rejected transform: %f", gt.TextAttrs.FontSize)
	}
}

func TestTransformEnd_RotateNarrowText(t *testing.T) {
	s := NewStore(nil)
	txt := NewTextLayer(core.DefaultSurface())
	txt.TextAttrs.Text = "i"
	txt.TextAttrs.FontSize = 8
	l, err := s.Add(txt)
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := s.TransformEnd(l.ID, core.Transform{X: l.X, Y: l.Y, Rotation: 45, ScaleX: 1, ScaleY: 1}); err != nil {
		t.Fatalf("rotate-only TransformEnd() failed: %v", err)
	}
	got, _ := s.Get(l.ID)
	if got.Rotation != 45 || got.TextAttrs.FontSize != 8 {
		t.Errorf("geometry mismatch: rotation=%f fontSize=%f", got.Rotation, got.TextAttrs.FontSize)
	}

	if err := s.TransformEnd(l.ID, core.Transform{X: l.X, Y: l.Y, Rotation: 90, ScaleX: 1, ScaleY: 1.5}); err != nil {
		t.Fatalf("growing TransformEnd() failed: %v", err)
	}
	got, _ = s.Get(l.ID)
	if got.TextAttrs.FontSize != 12 {
		t.Errorf("FontSize mismatch: got %f, want 12", got.TextAttrs.FontSize)
	}

	if err := s.TransformEnd(l.ID, core.Transform{X: l.X, Y: l.Y, ScaleX: 1, ScaleY: 0.5}); !errors.Is(err, ErrTooSmall) {
		t.Errorf("shrinking TransformEnd() error mismatch: got %v, want ErrTooSmall", err)
	}
}

func TestOnChange_ContentAndSelection(t *testing.T) {
	s := NewStore(nil)
	var mu sync.Mutex
	counts := map[ChangeKind]int{}
	s.OnChange(func(c Change) {
		mu.Lock()
		counts[c.Kind]++
		mu.Unlock()
	})

	a := addImage(t, s, 0, 0, 10, 10)
	b := addImage(t, s, 0, 0, 10, 10)
	s.Select(a.ID)
	s.Select(b.ID)
	_ = s.DragEnd(b.ID, 3, 3)

	mu.Lock()
	defer mu.Unlock()
	if counts[ChangeContent] != 3 {
		t.Errorf("content changes: got %d, want 3", counts[ChangeContent])
	}
	if counts[ChangeSelection] != 4 {
		t.Errorf("selection changes: got %d, want 4", counts[ChangeSelection])
	}
}

func TestSelectionDoesNotBumpVersion(t *testing.T) {
	s := NewStore(nil)
	a := addImage(t, s, 0, 0, 10, 10)
	addImage(t, s, 0, 0, 10, 10)
	v := s.Version()
	s.Select(a.ID)
	s.ClearSelection()
	if s.Version() != v {
		t.Errorf("version changed on selection: got %d, want %d", s.Version(), v)
	}
}

func TestLayersSnapshotIsIsolated(t *testing.T) {
	s := NewStore(nil)
	l := addImage(t, s, 0, 0, 10, 10)
	snap := s.Layers()
	snap[0].ImageAttrs.Width = 999
	got, _ := s.Get(l.ID)
	if got.ImageAttrs.Width != 10 {
		t.Errorf("snapshot aliases store state: width = %f", got.ImageAttrs.Width)
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := NewStore(nil)
	l := addImage(t, s, 0, 0, 100, 100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.DragEnd(l.ID, float64(i), float64(i))
			_ = s.Update(l.ID, core.Patch{Width: floatPtr(float64(10 + i))})
			_, _ = s.Add(NewTextLayer(core.DefaultSurface()))
		}(i)
	}
	wg.Wait()

	if s.Len() != 21 {
		t.Errorf("Len mismatch: got %d, want 21", s.Len())
	}
	if got := s.Version(); got != 61 {
		t.Errorf("Version mismatch: got %d, want 61", got)
	}
}
