package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mug-studio/core"
	"mug-studio/generate"
	"mug-studio/layers"
	"mug-studio/raster"
	"mug-studio/texture"

	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrBusy        = errors.New("a generation is already in progress")
	ErrClosed      = errors.New("session is closed")
	ErrNotFound    = errors.New("session not found")
	ErrNoPreview   = errors.New("no preview rendered yet")
)

const DefaultGenerateTimeout = 2 * time.Minute

type EventKind string

const (
	EventTextureUpdated EventKind = "texture-updated"
	EventClosed         EventKind = "session-closed"
)

// Event is pushed to viewers of a session.
type Event struct {
	Kind      EventKind `json:"-"`
	SessionID string    `json:"sessionId"`
	Version   uint64    `json:"version"`
	Revision  uint64    `json:"revision"`
}

// Options configure every session created from them.
type Options struct {
	Surface         core.Surface
	Fonts           *raster.FontBook
	PixelRatio      float64
	Debounce        time.Duration
	Clock           raster.Clock
	Generator       generate.Generator
	GenerateTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Surface.WidthPx == 0 {
		o.Surface = core.DefaultSurface()
	}
	if o.PixelRatio <= 0 {
		o.PixelRatio = raster.DefaultPixelRatio
	}
	if o.Debounce <= 0 {
		o.Debounce = raster.DefaultDebounce
	}
	if o.Clock == nil {
		o.Clock = raster.RealClock
	}
	if o.Generator == nil {
		o.Generator = generate.Disabled{}
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = generate.DefaultTimeout
	}
	return o
}

// Session is one mug design being edited: its layers, the debounced
// rasterization of those layers and the texture currently on the mug.
type Session struct {
	ID        string
	Surface   core.Surface
	CreatedAt time.Time

	store      *layers.Store
	rasterizer *raster.Rasterizer
	mapper     *texture.Mapper
	debouncer  *raster.Debouncer
	generator  generate.Generator
	genTimeout time.Duration

	busy   atomic.Bool
	closed atomic.Bool

	mu        sync.Mutex
	listeners []func(Event)
}

// New creates a session. A nil font book makes one from the built-in fonts.
func New(id string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	fonts := opts.Fonts
	if fonts == nil {
		var err error
		if fonts, err = raster.NewFontBook(); err != nil {
			return nil, fmt.Errorf("load fonts: %w", err)
		}
	}

	s := &Session{
		ID:         id,
		Surface:    opts.Surface,
		CreatedAt:  time.Now(),
		store:      layers.NewStore(fonts),
		rasterizer: raster.NewRasterizer(opts.Surface, fonts, raster.Options{PixelRatio: opts.PixelRatio}),
		mapper:     texture.NewMapper(),
		generator:  opts.Generator,
		genTimeout: opts.GenerateTimeout,
	}
	s.debouncer = raster.NewDebouncer(opts.Debounce, opts.Clock, s.render)
	s.store.OnChange(func(c layers.Change) {
		if c.Kind == layers.ChangeContent {
			s.debouncer.Trigger()
		}
	})
	return s, nil
}

// OnEvent registers fn for texture updates and closure of this session.
func (s *Session) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) emit(e Event) {
	s.mu.Lock()
	listeners := append([]func(Event){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(e)
	}
}

// render flattens the current layers and hands the bitmap to the mapper.
func (s *Session) render() {
	ls, version := s.store.Snapshot()
	img, err := s.rasterizer.Render(ls)
	if err != nil {
		logrus.WithError(err).WithField("session_id", s.ID).Error("Failed to rasterize design")
		return
	}
	tex, applied := s.mapper.Apply(img, version)
	if !applied || s.closed.Load() {
		return
	}
	logrus.WithFields(logrus.Fields{
		"session_id": s.ID,
		"version":    version,
		"revision":   tex.Revision,
	}).Debug("Texture updated")
	s.emit(Event{Kind: EventTextureUpdated, SessionID: s.ID, Version: version, Revision: tex.Revision})
}

// Layers returns the layer store of the session.
func (s *Session) Layers() *layers.Store { return s.store }

func (s *Session) Rasterizer() *raster.Rasterizer { return s.rasterizer }

func (s *Session) Mapper() *texture.Mapper { return s.mapper }

// Flush renders immediately if a rasterization is pending.
func (s *Session) Flush() bool { return s.debouncer.Flush() }

func (s *Session) Busy() bool { return s.busy.Load() }

func (s *Session) Closed() bool { return s.closed.Load() }

// AddText adds the placeholder text layer and selects it.
func (s *Session) AddText() (core.Layer, error) {
	if s.closed.Load() {
		return core.Layer{}, ErrClosed
	}
	return s.store.Add(layers.NewTextLayer(s.Surface))
}

// AddImage decodes an uploaded file and adds it centred on the surface.
func (s *Session) AddImage(data []byte) (core.Layer, error) {
	if s.closed.Load() {
		return core.Layer{}, ErrClosed
	}
	img, format, err := raster.Decode(data)
	if err != nil {
		return core.Layer{}, err
	}
	src := raster.EncodeDataURL(raster.MimeType(format), data)
	return s.store.Add(layers.NewUploadedImageLayer(s.Surface, src, img))
}

// Generate asks the generator for an image from prompt and adds it as a
// layer. Only one generation runs per session at a time. The outbound call
// is not cancelled with ctx; it is bounded by the session's timeout.
func (s *Session) Generate(ctx context.Context, prompt string) (core.Layer, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return core.Layer{}, ErrEmptyPrompt
	}
	if s.closed.Load() {
		return core.Layer{}, ErrClosed
	}
	if !s.busy.CompareAndSwap(false, true) {
		return core.Layer{}, ErrBusy
	}
	defer s.busy.Store(false)

	log := logrus.WithField("session_id", s.ID)
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.genTimeout)
	defer cancel()

	data, err := s.generator.Generate(genCtx, generate.Request{
		Prompt:      prompt,
		AspectRatio: generate.DefaultAspectRatio,
		Count:       1,
	})
	if err != nil {
		log.WithError(err).Warn("Image generation failed")
		return core.Layer{}, err
	}
	img, format, err := raster.Decode(data)
	if err != nil {
		log.WithError(err).Warn("Generated image could not be decoded")
		return core.Layer{}, fmt.Errorf("%w: %v", generate.ErrNoImage, err)
	}
	if s.closed.Load() {
		log.Info("Session closed during generation, discarding image")
		return core.Layer{}, ErrClosed
	}
	src := raster.EncodeDataURL(raster.MimeType(format), data)
	return s.store.Add(layers.NewGeneratedImageLayer(src, img))
}

// Preview returns the PNG of the texture currently on the mug.
func (s *Session) Preview() ([]byte, error) {
	tex := s.mapper.Current()
	if tex == nil {
		return nil, ErrNoPreview
	}
	return raster.EncodePNG(tex.Image)
}

// State is a point-in-time view of a session.
type State struct {
	ID         string       `json:"id"`
	Surface    core.Surface `json:"surface"`
	Layers     []core.Layer `json:"layers"`
	SelectedID string       `json:"selectedId,omitempty"`
	// SelectionBox holds the corners of the selected layer, clockwise
	// from its top-left.
	SelectionBox *[4][2]float64 `json:"selectionBox,omitempty"`
	Version      uint64         `json:"version"`
	Busy         bool           `json:"busy"`
}

func (s *Session) State() State {
	ls, version := s.store.Snapshot()
	st := State{
		ID:         s.ID,
		Surface:    s.Surface,
		Layers:     ls,
		SelectedID: s.store.SelectedID(),
		Version:    version,
		Busy:       s.busy.Load(),
	}
	if box, ok := s.store.SelectionBox(); ok {
		st.SelectionBox = &box
	}
	return st
}

// MugPoint is where a design-surface point lands on the mug body.
type MugPoint struct {
	U        float64    `json:"u"`
	V        float64    `json:"v"`
	Position [3]float64 `json:"position"`
}

// Locate maps a design-surface point onto the mug, so a viewer can mark
// the pointer on the 3D model.
func (s *Session) Locate(x, y float64) MugPoint {
	u, v, pos := texture.SurfacePoint(s.Surface, x, y)
	return MugPoint{U: u, V: v, Position: pos}
}

// MugView is what a 3D viewer needs to draw the mug.
type MugView struct {
	Mug      texture.Mug      `json:"mug"`
	Material texture.Material `json:"material"`
}

func (s *Session) Mug() MugView {
	return MugView{Mug: texture.NewMug(s.Surface), Material: s.mapper.Material()}
}

// Close stops rendering and drops the results of in-flight generations.
// Closing twice is a no-op.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.debouncer.Stop()
	s.emit(Event{Kind: EventClosed, SessionID: s.ID, Version: s.store.Version()})
}
