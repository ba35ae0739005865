// Package gemini provides a Gemini API client interface for image analysis,
// chat and embeddings.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Client defines operations for interacting with Gemini models.
type Client interface {
	GenerateContent(ctx context.Context, model string, parts []Part, config *GenerateConfig) (string, error)
	Converse(ctx context.Context, model string, turns []Turn, config *GenerateConfig) (string, error)
	EmbedContent(ctx context.Context, model string, text string) ([]float32, error)
}

// Part represents a content part for Gemini requests.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// Turn is one message of a multi-turn conversation.
type Turn struct {
	Role string // "user" or "model"
	Text string
}

// GenerateConfig holds configuration for content generation.
type GenerateConfig struct {
	Temperature       *float32
	ResponseMIMEType  string
	SystemInstruction string
}

type geminiClient struct {
	client *genai.Client
}

// New creates a Gemini Client using the provided API key. A positive timeout
// bounds every HTTP request.
func New(ctx context.Context, apiKey string, timeout time.Duration) (Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &geminiClient{client: client}, nil
}

func (c *geminiClient) GenerateContent(ctx context.Context, model string, parts []Part, config *GenerateConfig) (string, error) {
	var genaiParts []*genai.Part
	for _, p := range parts {
		if p.Text != "" {
			genaiParts = append(genaiParts, genai.NewPartFromText(p.Text))
		} else if p.Data != nil {
			genaiParts = append(genaiParts, genai.NewPartFromBytes(p.Data, p.MIMEType))
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, []*genai.Content{
		genai.NewContentFromParts(genaiParts, "user"),
	}, buildConfig(config))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return firstText(resp), nil
}

func (c *geminiClient) Converse(ctx context.Context, model string, turns []Turn, config *GenerateConfig) (string, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		if t.Text == "" {
			continue
		}
		if t.Role == "model" {
			contents = append(contents, genai.NewContentFromText(t.Text, "model"))
		} else {
			contents = append(contents, genai.NewContentFromText(t.Text, "user"))
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, buildConfig(config))
	if err != nil {
		return "", fmt.Errorf("converse: %w", err)
	}
	return firstText(resp), nil
}

func (c *geminiClient) EmbedContent(ctx context.Context, model string, text string) ([]float32, error) {
	resp, err := c.client.Models.EmbedContent(ctx, model, []*genai.Content{
		genai.NewContentFromText(text, "user"),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	return resp.Embeddings[0].Values, nil
}

func buildConfig(config *GenerateConfig) *genai.GenerateContentConfig {
	if config == nil {
		return nil
	}
	genConfig := &genai.GenerateContentConfig{}
	if config.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*config.Temperature))
	}
	if config.ResponseMIMEType != "" {
		genConfig.ResponseMIMEType = config.ResponseMIMEType
	}
	if config.SystemInstruction != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(config.SystemInstruction, "user")
	}
	return genConfig
}

// firstText returns the text of the first candidate, or "" when the model
// produced no candidates.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return resp.Candidates[0].Content.Parts[0].Text
}

// StatusCode extracts the HTTP status from an error returned by the Gemini API.
func StatusCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
