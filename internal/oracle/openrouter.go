package oracle

import (
	"context"

	"github.com/projectcloudline/loss-assessment-service/internal/openrouter"
)

// OpenRouter adapts an openrouter.Client to VisionOracle. It serves the Qwen
// vision model by default; Label names the model family in reports.
type OpenRouter struct {
	Client              openrouter.Client
	Model               string
	Label               string
	MaxTokens           int
	AnalysisTemperature float32
	ChatTemperature     float32
}

// NewOpenRouter returns an OpenRouter oracle with the default limits.
func NewOpenRouter(client openrouter.Client, model, label string) *OpenRouter {
	if label == "" {
		label = "Qwen"
	}
	return &OpenRouter{
		Client:              client,
		Model:               model,
		Label:               label,
		MaxTokens:           1500,
		AnalysisTemperature: 0.2,
		ChatTemperature:     0.7,
	}
}

func (o *OpenRouter) Name() string { return o.Label }

func (o *OpenRouter) Analyze(ctx context.Context, images []Image, instructions string) (string, error) {
	msg := openrouter.Message{Role: "user", Text: instructions}
	for _, img := range images {
		msg.Images = append(msg.Images, openrouter.Image{Data: img.Data, MIMEType: img.MIMEType})
	}

	out, err := o.Client.Complete(ctx, openrouter.Request{
		Model:       o.Model,
		Temperature: o.AnalysisTemperature,
		MaxTokens:   o.MaxTokens,
		Messages:    []openrouter.Message{msg},
	})
	if err != nil {
		return "", classify(ctx, o.Name(), err, openrouter.StatusCode)
	}
	return nonEmpty(o.Name(), out)
}

func (o *OpenRouter) Chat(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]openrouter.Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openrouter.Message{Role: "system", Text: req.SystemPrompt})
	}
	for _, m := range req.History {
		msgs = append(msgs, openrouter.Message{Role: string(m.Role), Text: m.Content})
	}
	msgs = append(msgs, openrouter.Message{Role: "user", Text: req.NewMessage})

	out, err := o.Client.Complete(ctx, openrouter.Request{
		Model:       o.Model,
		Temperature: o.ChatTemperature,
		MaxTokens:   o.MaxTokens,
		Messages:    msgs,
	})
	if err != nil {
		return "", classify(ctx, o.Name(), err, openrouter.StatusCode)
	}
	return nonEmpty(o.Name(), out)
}
