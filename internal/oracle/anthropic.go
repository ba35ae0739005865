package oracle

import (
	"context"

	"github.com/projectcloudline/loss-assessment-service/internal/anthropic"
)

// Anthropic adapts an anthropic.Client to VisionOracle.
type Anthropic struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
}

// NewAnthropic returns a Claude oracle.
func NewAnthropic(client anthropic.Client, model string) *Anthropic {
	return &Anthropic{Client: client, Model: model, MaxTokens: 2048}
}

func (a *Anthropic) Name() string { return "Claude" }

func (a *Anthropic) Analyze(ctx context.Context, images []Image, instructions string) (string, error) {
	parts := make([]anthropic.ContentPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, anthropic.ContentPart{ImageData: img.Data, MIMEType: img.MIMEType})
	}
	parts = append(parts, anthropic.ContentPart{Text: instructions})

	out, err := a.Client.CreateMessage(ctx, anthropic.Request{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: parts}},
	})
	if err != nil {
		return "", classify(ctx, a.Name(), err, anthropic.StatusCode)
	}
	return nonEmpty(a.Name(), out)
}

func (a *Anthropic) Chat(ctx context.Context, req ChatRequest) (string, error) {
	history := dropLeadingAssistant(req.History)
	msgs := make([]anthropic.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, anthropic.Message{Role: string(m.Role), Content: []anthropic.ContentPart{{Text: m.Content}}})
	}
	msgs = append(msgs, anthropic.Message{Role: "user", Content: []anthropic.ContentPart{{Text: req.NewMessage}}})

	out, err := a.Client.CreateMessage(ctx, anthropic.Request{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		System:    req.SystemPrompt,
		Messages:  msgs,
	})
	if err != nil {
		return "", classify(ctx, a.Name(), err, anthropic.StatusCode)
	}
	return nonEmpty(a.Name(), out)
}
