package generate

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoImage covers every way a generation can fail to yield an image:
	// transport errors, error statuses, malformed or empty responses.
	ErrNoImage       = errors.New("no image generated")
	ErrNotConfigured = errors.New("image generator is not configured")
)

const (
	DefaultAspectRatio = "1:1"
	// DefaultTimeout bounds one outbound generation request.
	DefaultTimeout = 2 * time.Minute
)

// Request is one text-to-image generation.
type Request struct {
	Prompt      string
	AspectRatio string
	Count       int
}

// Generator turns a prompt into encoded image bytes.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Disabled is the generator used when no provider is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) ([]byte, error) {
	return nil, ErrNotConfigured
}

// NewFromEnv selects a provider from GENERATOR_PROVIDER (gemini or openai).
// Without a provider it picks whichever has an API key, preferring Gemini.
func NewFromEnv() Generator {
	provider := strings.ToLower(os.Getenv("GENERATOR_PROVIDER"))
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = os.Getenv("API_KEY")
	}
	openaiKey := os.Getenv("OPENAI_API_KEY")

	if provider == "" {
		switch {
		case geminiKey != "":
			provider = "gemini"
		case openaiKey != "":
			provider = "openai"
		}
	}

	log := logrus.WithField("provider", provider)
	switch provider {
	case "gemini":
		if geminiKey == "" {
			log.Warn("GEMINI_API_KEY environment variable not set. Image generation will not work.")
			return Disabled{}
		}
		log.Info("Using Gemini image generation")
		return NewGemini(geminiKey, os.Getenv("GEMINI_BASE_URL"), os.Getenv("GEMINI_IMAGE_MODEL"))
	case "openai":
		if openaiKey == "" {
			log.Warn("OPENAI_API_KEY environment variable not set. Image generation will not work.")
			return Disabled{}
		}
		log.Info("Using OpenAI image generation")
		return NewOpenAI(openaiKey, os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_IMAGE_MODEL"))
	}
	logrus.Warn("No image generator configured.")
	return Disabled{}
}

func withDefaults(req Request) Request {
	if req.AspectRatio == "" {
		req.AspectRatio = DefaultAspectRatio
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	return req
}
