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
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOpenAIModel   = "gpt-image-1"
)

type (
	imagesRequest struct {
		Model          string `json:"model"`
		Prompt         string `json:"prompt"`
		N              int    `json:"n"`
		Size           string `json:"size"`
		ResponseFormat string `json:"response_format,omitempty"`
	}

	imagesResponse struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
)

// OpenAI generates images with an OpenAI-compatible /v1/images/generations
// endpoint.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// sizeFor maps an aspect ratio onto the sizes the images API accepts.
func sizeFor(aspect string) string {
	switch aspect {
	case "3:2", "16:9":
		return "1536x1024"
	case "2:3", "9:16":
		return "1024x1536"
	}
	return "1024x1024"
}

func (o *OpenAI) Generate(ctx context.Context, req Request) ([]byte, error) {
	if o.apiKey == "" {
		return nil, ErrNotConfigured
	}
	req = withDefaults(req)

	body, err := json.Marshal(imagesRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		N:      req.Count,
		Size:   sizeFor(req.AspectRatio),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrNoImage, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	log := logrus.WithFields(logrus.Fields{"provider": "openai", "model": o.model})
	resp, err := o.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Error("Failed to communicate with OpenAI API")
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNoImage, err)
	}

	var parsed imagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response (status %d): %v", ErrNoImage, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		log.WithFields(logrus.Fields{"status": resp.StatusCode, "message": msg}).Warn("OpenAI API returned an error status")
		return nil, fmt.Errorf("%w: openai status %d", ErrNoImage, resp.StatusCode)
	}
	for _, d := range parsed.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("%w: b64_json: %v", ErrNoImage, err)
		}
		log.WithField("bytes", len(data)).Info("Image generated")
		return data, nil
	}
	return nil, fmt.Errorf("%w: response has no image data", ErrNoImage)
}
