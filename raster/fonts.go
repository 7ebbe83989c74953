package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"mug-studio/core"

	"github.com/gogpu/gg/text"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// builtinFonts maps the offered families onto the embedded Go fonts so
// text renders without any system fonts installed.
var builtinFonts = map[string][]byte{
	"inter":           goregular.TTF,
	"arial":           goregular.TTF,
	"verdana":         gomedium.TTF,
	"times new roman": gomedium.TTF,
	"georgia":         gomedium.TTF,
	"courier new":     gomono.TTF,
	"comic sans ms":   goitalic.TTF,
}

// FontBook resolves font families to faces. Unknown families resolve to
// the fallback face.
type FontBook struct {
	mu       sync.RWMutex
	sources  map[string]*text.FontSource
	fallback *text.FontSource
}

// NewFontBook returns a book with the built-in families registered.
func NewFontBook() (*FontBook, error) {
	fallback, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load fallback font: %w", err)
	}
	b := &FontBook{
		sources:  make(map[string]*text.FontSource),
		fallback: fallback,
	}
	for family, data := range builtinFonts {
		if err := b.Register(family, data); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Register adds or replaces a family from TrueType/OpenType data.
func (b *FontBook) Register(family string, data []byte) error {
	src, err := text.NewFontSource(data)
	if err != nil {
		return fmt.Errorf("register font %q: %w", family, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[strings.ToLower(family)] = src
	return nil
}

// LoadDir registers every .ttf and .otf file in dir under its file name
// without extension, e.g. "Comic Sans MS.ttf".
func (b *FontBook) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			logrus.WithError(err).WithField("file", e.Name()).Warn("Skipping unreadable font")
			continue
		}
		family := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := b.Register(family, data); err != nil {
			logrus.WithError(err).WithField("file", e.Name()).Warn("Skipping invalid font")
			continue
		}
		n++
	}
	logrus.WithFields(logrus.Fields{"dir": dir, "fonts": n}).Info("Loaded font directory")
	return n, nil
}

// Face returns a face of the family at the given pixel size.
func (b *FontBook) Face(family string, size float64) text.Face {
	b.mu.RLock()
	src, ok := b.sources[strings.ToLower(family)]
	b.mu.RUnlock()
	if !ok {
		src = b.fallback
	}
	return src.Face(size)
}

// Has reports whether family resolves to its own font.
func (b *FontBook) Has(family string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.sources[strings.ToLower(family)]
	return ok
}

// Families lists the registered family keys, sorted.
func (b *FontBook) Families() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.sources))
	for f := range b.sources {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// MeasureText returns the block size of a text layer: the widest line's
// advance by one font size per line.
func (b *FontBook) MeasureText(t core.TextAttrs) (float64, float64) {
	face := b.Face(t.FontFamily, t.FontSize)
	lines := t.Lines()
	widest := 0.0
	for _, line := range lines {
		if w := face.Advance(line); w > widest {
			widest = w
		}
	}
	return widest, float64(len(lines)) * t.FontSize
}
