// Package openrouter provides an OpenAI-compatible chat client pointed at
// OpenRouter, used for the Qwen and LLaVA vision models.
package openrouter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// BaseURL is the OpenRouter OpenAI-compatible endpoint.
const BaseURL = "https://openrouter.ai/api/v1"

// Client defines the chat completion call used by the oracle adapters.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is one chat completion call.
type Request struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Messages    []Message
}

// Message is a chat message. Images are attached to user messages only.
type Message struct {
	Role   string // "system", "user" or "assistant"
	Text   string
	Images []Image
}

// Image is an encoded image sent as a data URL.
type Image struct {
	Data     []byte
	MIMEType string
}

// Options identify the calling application to OpenRouter.
type Options struct {
	Referer string
	Title   string
	Timeout time.Duration
}

type routerClient struct {
	client *openai.Client
}

// New creates an OpenRouter Client using the provided API key.
func New(apiKey string, opts Options) Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = BaseURL
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	cfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &headerTransport{referer: opts.Referer, title: opts.Title, next: http.DefaultTransport},
	}
	return &routerClient{client: openai.NewClientWithConfig(cfg)}
}

func (c *routerClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAI(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		if len(m.Images) == 0 || role != openai.ChatMessageRoleUser {
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Text})
			continue
		}

		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Text}}
		for _, img := range m.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: DataURL(img)},
			})
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, MultiContent: parts})
	}
	return out
}

// DataURL encodes img as a base64 data URL.
func DataURL(img Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// StatusCode extracts the HTTP status from an error returned by the API.
func StatusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

type headerTransport struct {
	referer string
	title   string
	next    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.next.RoundTrip(req)
}
