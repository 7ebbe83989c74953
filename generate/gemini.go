package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.5-flash-image"
)

type (
	geminiPart struct {
		Text       string            `json:"text,omitempty"`
		InlineData *geminiInlineData `json:"inlineData,omitempty"`
	}

	geminiInlineData struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	}

	geminiContent struct {
		Parts []geminiPart `json:"parts"`
	}

	geminiImageConfig struct {
		AspectRatio string `json:"aspectRatio,omitempty"`
	}

	geminiGenerationConfig struct {
		ResponseModalities []string           `json:"responseModalities,omitempty"`
		CandidateCount     int                `json:"candidateCount,omitempty"`
		ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
	}

	geminiRequest struct {
		Contents         []geminiContent        `json:"contents"`
		GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	}

	geminiResponse struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
)

// Gemini generates images with the Gemini generateContent API.
type Gemini struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewGemini(apiKey, baseURL, model string) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// Generate returns the first inline image of the first candidate.
func (g *Gemini) Generate(ctx context.Context, req Request) ([]byte, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}
	req = withDefaults(req)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			CandidateCount:     req.Count,
			ImageConfig:        &geminiImageConfig{AspectRatio: req.AspectRatio},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrNoImage, err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	log := logrus.WithFields(logrus.Fields{"provider": "gemini", "model": g.model})
	resp, err := g.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Error("Failed to communicate with Gemini API")
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNoImage, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("Gemini API returned an error status")
		return nil, fmt.Errorf("%w: gemini status %d", ErrNoImage, resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrNoImage, err)
	}
	if len(parsed.Candidates) == 0 {
		log.Warn("No image data found in response")
		return nil, fmt.Errorf("%w: no candidates", ErrNoImage)
	}
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: inline data: %v", ErrNoImage, err)
		}
		log.WithField("bytes", len(data)).Info("Image generated")
		return data, nil
	}
	log.Warn("No image data found in response")
	return nil, fmt.Errorf("%w: response has no inline image", ErrNoImage)
}
