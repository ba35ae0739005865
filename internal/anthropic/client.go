// Package anthropic provides a Claude API client interface for image analysis
// and chat.
package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client defines operations for interacting with Claude models.
type Client interface {
	CreateMessage(ctx context.Context, req Request) (string, error)
}

// Request is a single Messages API call.
type Request struct {
	Model     string
	MaxTokens int64
	System    string
	Messages  []Message
}

// Message represents a message in a Claude conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content []ContentPart
}

// ContentPart represents a content block within a message.
type ContentPart struct {
	Text      string
	ImageData []byte
	MIMEType  string
}

type claudeClient struct {
	client anthropic.Client
}

// New creates a Claude Client using the provided API key. A positive timeout
// bounds every request.
func New(apiKey string, timeout time.Duration) Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &claudeClient{client: anthropic.NewClient(opts...)}
}

func (c *claudeClient) CreateMessage(ctx context.Context, req Request) (string, error) {
	var params []anthropic.MessageParam
	for _, msg := range TrimLeadingAssistant(req.Messages) {
		var blocks []anthropic.ContentBlockParamUnion
		for _, part := range msg.Content {
			if part.ImageData != nil {
				encoded := base64.StdEncoding.EncodeToString(part.ImageData)
				blocks = append(blocks, anthropic.NewImageBlockBase64(part.MIMEType, encoded))
			}
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		switch msg.Role {
		case "user":
			params = append(params, anthropic.NewUserMessage(blocks...))
		case "assistant":
			params = append(params, anthropic.NewAssistantMessage(blocks...))
		}
	}

	body := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  params,
	}
	if req.System != "" {
		body.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, body)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", nil
}

// TrimLeadingAssistant drops assistant turns before the first user turn.
// The Messages API rejects conversations that open with the assistant.
func TrimLeadingAssistant(messages []Message) []Message {
	for i, m := range messages {
		if m.Role == "user" {
			return messages[i:]
		}
	}
	return nil
}

// StatusCode extracts the HTTP status from an error returned by the Claude API.
func StatusCode(err error) (int, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.StatusCode, true
	}
	return 0, false
}
