package layers

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"mug-studio/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound     = errors.New("layer not found")
	ErrDuplicateID  = errors.New("duplicate layer id")
	ErrInvalidLayer = errors.New("invalid layer")
	ErrWrongKind    = errors.New("attribute does not apply to layer kind")
	ErrTooSmall     = errors.New("layer would be smaller than the minimum size")
)

// ChangeKind distinguishes edits that alter the rendered design from edits
// that only move the selection.
type ChangeKind int

const (
	ChangeContent ChangeKind = iota
	ChangeSelection
)

func (k ChangeKind) String() string {
	if k == ChangeSelection {
		return "selection"
	}
	return "content"
}

// Change describes one committed mutation of a Store.
type Change struct {
	Kind    ChangeKind
	LayerID string
	Version uint64
}

// Measurer reports the unscaled bounding box of a text block.
type Measurer interface {
	MeasureText(attrs core.TextAttrs) (width, height float64)
}

// Store owns the ordered layer collection and the selection. Slice order is
// z-order: the last layer is drawn on top. Every mutation is validated in
// full before it is committed, so a rejected mutation leaves no trace.
type Store struct {
	mu        sync.Mutex
	layers    []core.Layer
	selected  string
	version   uint64
	measurer  Measurer
	listeners []func(Change)
}

// NewStore creates an empty store. A nil measurer falls back to an estimate
// based on font size.
func NewStore(m Measurer) *Store {
	if m == nil {
		m = estimateMeasurer{}
	}
	return &Store{measurer: m}
}

// OnChange registers fn to be called after every committed mutation.
// Listeners run outside the store lock.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(changes ...Change) {
	s.mu.Lock()
	listeners := append([]func(Change){}, s.listeners...)
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range listeners {
			fn(c)
		}
	}
}

// Add appends l on top of the stack and selects it. An empty ID is
// replaced by a fresh ULID.
func (s *Store) Add(l core.Layer) (core.Layer, error) {
	l = l.Clone()
	if l.ScaleX == 0 {
		l.ScaleX = 1
	}
	if l.ScaleY == 0 {
		l.ScaleY = 1
	}
	l.Draggable = true
	l.Rotation = core.NormalizeRotation(l.Rotation)
	if err := validate(l); err != nil {
		return core.Layer{}, err
	}

	s.mu.Lock()
	if l.ID == "" {
		l.ID = ulid.Make().String()
	} else if s.indexOf(l.ID) >= 0 {
		s.mu.Unlock()
		return core.Layer{}, fmt.Errorf("%w: %s", ErrDuplicateID, l.ID)
	}
	s.layers = append(s.layers, l)
	s.selected = l.ID
	s.version++
	version := s.version
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"layer_id": l.ID,
		"kind":     l.Kind,
	}).Debug("Layer added")

	s.notify(
		Change{Kind: ChangeContent, LayerID: l.ID, Version: version},
		Change{Kind: ChangeSelection, LayerID: l.ID, Version: version},
	)
	return l.Clone(), nil
}

// Update merges p into the layer with the given id. It returns ErrNotFound
// for ids that no longer exist; callers treat that as a no-op.
func (s *Store) Update(id string, p core.Patch) error {
	return s.mutate(id, func(l *core.Layer) error {
		return applyPatch(l, p)
	})
}

// DragEnd commits the final position of a drag gesture.
func (s *Store) DragEnd(id string, x, y float64) error {
	return s.mutate(id, func(l *core.Layer) error {
		l.X, l.Y = x, y
		return nil
	})
}

// TransformEnd commits the geometry of a resize or rotate gesture. The
// accumulated scale is folded into width/height for images and into the
// font size for text (vertical scale only), and the stored scale is reset
// to 1. Sizes below core.MinDimension are rejected with ErrTooSmall; for
// text only a shrinking gesture is checked against the floor.
func (s *Store) TransformEnd(id string, t core.Transform) error {
	return s.mutate(id, func(l *core.Layer) error {
		sx, sy := t.ScaleX, t.ScaleY
		if sx == 0 {
			sx = 1
		}
		if sy == 0 {
			sy = 1
		}
		l.X, l.Y = t.X, t.Y
		l.Rotation = core.NormalizeRotation(t.Rotation)
		l.ScaleX, l.ScaleY = 1, 1

		switch l.Kind {
		case core.KindImage:
			w, h := l.ImageAttrs.Width*sx, l.ImageAttrs.Height*sy
			if w < core.MinDimension || h < core.MinDimension {
				return fmt.Errorf("%w: %.1fx%.1f", ErrTooSmall, w, h)
			}
			l.ImageAttrs.Width, l.ImageAttrs.Height = w, h
		case core.KindText:
			size := l.TextAttrs.FontSize * sy
			next := *l.TextAttrs
			next.FontSize = size
			if size <= 0 {
				return fmt.Errorf("%w: font size %.1f", ErrTooSmall, size)
			}
			// Only a shrinking gesture can push the text under the floor.
			if sy < 1 {
				w, h := s.measurer.MeasureText(next)
				if h < core.MinDimension || (w < core.MinDimension && strings.TrimSpace(next.Text) != "") {
					return fmt.Errorf("%w: %.1fx%.1f", ErrTooSmall, w, h)
				}
			}
			l.TextAttrs.FontSize = size
		}
		return nil
	})
}

// mutate applies fn to a copy of the layer and commits the copy only when
// fn and validation succeed.
func (s *Store) mutate(id string, fn func(l *core.Layer) error) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		logrus.WithField("layer_id", id).Debug("Ignoring update for unknown layer")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := s.layers[i].Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.ID, next.Kind, next.Draggable = id, s.layers[i].Kind, true
	if err := validate(next); err != nil {
		s.mu.Unlock()
		return err
	}

	s.layers[i] = next
	s.version++
	version := s.version
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeContent, LayerID: id, Version: version})
	return nil
}

// Delete removes the layer with the given id, clearing the selection if it
// pointed at it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	changes := []Change{}
	s.version++
	changes = append(changes, Change{Kind: ChangeContent, LayerID: id, Version: s.version})
	if s.selected == id {
		s.selected = ""
		changes = append(changes, Change{Kind: ChangeSelection, Version: s.version})
	}
	s.mu.Unlock()

	logrus.WithField("layer_id", id).Debug("Layer deleted")
	s.notify(changes...)
	return nil
}

// DeleteSelected removes the selected layer. It reports false when nothing
// was selected.
func (s *Store) DeleteSelected() bool {
	s.mu.Lock()
	id := s.selected
	s.mu.Unlock()
	if id == "" {
		return false
	}
	return s.Delete(id) == nil
}

// Select makes id the selected layer. Unknown ids clear the selection.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if s.indexOf(id) < 0 {
		id = ""
	}
	if s.selected == id {
		s.mu.Unlock()
		return
	}
	s.selected = id
	version := s.version
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSelection, LayerID: id, Version: version})
}

func (s *Store) ClearSelection() {
	s.Select("")
}

// Selected returns the selected layer, if any.
func (s *Store) Selected() (core.Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(s.selected); i >= 0 {
		return s.layers[i].Clone(), true
	}
	return core.Layer{}, false
}

// SelectionBox returns the transformed corners of the selected layer, for
// drawing transform handles.
func (s *Store) SelectionBox() ([4][2]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(s.selected)
	if i < 0 {
		return [4][2]float64{}, false
	}
	return Corners(s.layers[i], s.measurer), true
}

// SelectedID returns the selected id or "" when nothing is selected.
func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Store) Get(id string) (core.Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.layers[i].Clone(), true
	}
	return core.Layer{}, false
}

// Layers returns a snapshot of the collection in z-order.
func (s *Store) Layers() []core.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Snapshot returns the layers together with the version they belong to.
func (s *Store) Snapshot() ([]core.Layer, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), s.version
}

func (s *Store) snapshot() []core.Layer {
	out := make([]core.Layer, len(s.layers))
	for i, l := range s.layers {
		out[i] = l.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.layers)
}

// Version increases with every content or geometry change. Selection
// changes leave it untouched.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// HitTest returns the topmost layer containing the design-surface point.
func (s *Store) HitTest(x, y float64) (core.Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.layers) - 1; i >= 0; i-- {
		if Contains(s.layers[i], s.measurer, x, y) {
			return s.layers[i].Clone(), true
		}
	}
	return core.Layer{}, false
}

// PointerDown selects the layer under the pointer, or clears the selection
// when the background was hit.
func (s *Store) PointerDown(x, y float64) (core.Layer, bool) {
	l, ok := s.HitTest(x, y)
	if !ok {
		s.ClearSelection()
		return core.Layer{}, false
	}
	s.Select(l.ID)
	return l, true
}

// Bounds returns the unscaled local size of l.
func (s *Store) Bounds(l core.Layer) (float64, float64) {
	return Size(l, s.measurer)
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.layers {
		if s.layers[i].ID == id {
			return i
		}
	}
	return -1
}

func applyPatch(l *core.Layer, p core.Patch) error {
	if p.X != nil {
		l.X = *p.X
	}
	if p.Y != nil {
		l.Y = *p.Y
	}
	if p.Rotation != nil {
		l.Rotation = core.NormalizeRotation(*p.Rotation)
	}

	textPatch := p.Text != nil || p.FontSize != nil || p.FontFamily != nil || p.Fill != nil || p.Align != nil
	imagePatch := p.Width != nil || p.Height != nil

	switch l.Kind {
	case core.KindText:
		if imagePatch {
			return fmt.Errorf("%w: width/height on text layer", ErrWrongKind)
		}
		if p.Text != nil {
			l.TextAttrs.Text = *p.Text
		}
		if p.FontSize != nil {
			l.TextAttrs.FontSize = *p.FontSize
		}
		if p.FontFamily != nil {
			l.TextAttrs.FontFamily = *p.FontFamily
		}
		if p.Fill != nil {
			l.TextAttrs.Fill = *p.Fill
		}
		if p.Align != nil {
			l.TextAttrs.Align = *p.Align
		}
	case core.KindImage:
		if textPatch {
			return fmt.Errorf("%w: text attributes on image layer", ErrWrongKind)
		}
		if p.Width != nil {
			l.ImageAttrs.Width = *p.Width
		}
		if p.Height != nil {
			l.ImageAttrs.Height = *p.Height
		}
		if l.ImageAttrs.Width < core.MinDimension || l.ImageAttrs.Height < core.MinDimension {
			return fmt.Errorf("%w: %.1fx%.1f", ErrTooSmall, l.ImageAttrs.Width, l.ImageAttrs.Height)
		}
	}
	return nil
}

func validate(l core.Layer) error {
	switch l.Kind {
	case core.KindText:
		t := l.TextAttrs
		switch {
		case t == nil || l.ImageAttrs != nil:
			return fmt.Errorf("%w: text layer must carry text attributes only", ErrInvalidLayer)
		case t.FontSize <= 0:
			return fmt.Errorf("%w: font size must be positive", ErrInvalidLayer)
		case !core.ValidColor(t.Fill):
			return fmt.Errorf("%w: fill %q is not #RRGGBB", ErrInvalidLayer, t.Fill)
		case !core.ValidAlign(t.Align):
			return fmt.Errorf("%w: align %q", ErrInvalidLayer, t.Align)
		case t.FontFamily == "":
			return fmt.Errorf("%w: font family is empty", ErrInvalidLayer)
		}
	case core.KindImage:
		i := l.ImageAttrs
		switch {
		case i == nil || l.TextAttrs != nil:
			return fmt.Errorf("%w: image layer must carry image attributes only", ErrInvalidLayer)
		case i.Width <= 0 || i.Height <= 0:
			return fmt.Errorf("%w: image size must be positive", ErrInvalidLayer)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidLayer, l.Kind)
	}
	return nil
}
