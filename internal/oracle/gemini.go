package oracle

import (
	"context"

	"github.com/projectcloudline/loss-assessment-service/internal/gemini"
)

// Gemini adapts a gemini.Client to VisionOracle.
type Gemini struct {
	Client              gemini.Client
	Model               string
	AnalysisTemperature float32
	ChatTemperature     float32
}

// NewGemini returns a Gemini oracle with the default sampling temperatures.
func NewGemini(client gemini.Client, model string) *Gemini {
	return &Gemini{Client: client, Model: model, AnalysisTemperature: 0.4, ChatTemperature: 0.7}
}

func (g *Gemini) Name() string { return "Gemini" }

func (g *Gemini) Analyze(ctx context.Context, images []Image, instructions string) (string, error) {
	parts := make([]gemini.Part, 0, len(images)+1)
	parts = append(parts, gemini.Part{Text: instructions})
	for _, img := range images {
		parts = append(parts, gemini.Part{Data: img.Data, MIMEType: img.MIMEType})
	}

	temp := g.AnalysisTemperature
	out, err := g.Client.GenerateContent(ctx, g.Model, parts, &gemini.GenerateConfig{Temperature: &temp})
	if err != nil {
		return "", classify(ctx, g.Name(), err, gemini.StatusCode)
	}
	return nonEmpty(g.Name(), out)
}

func (g *Gemini) Chat(ctx context.Context, req ChatRequest) (string, error) {
	history := dropLeadingAssistant(req.History)
	turns := make([]gemini.Turn, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		turns = append(turns, gemini.Turn{Role: role, Text: m.Content})
	}
	turns = append(turns, gemini.Turn{Role: "user", Text: req.NewMessage})

	temp := g.ChatTemperature
	out, err := g.Client.Converse(ctx, g.Model, turns, &gemini.GenerateConfig{
		Temperature:       &temp,
		SystemInstruction: req.SystemPrompt,
	})
	if err != nil {
		return "", classify(ctx, g.Name(), err, gemini.StatusCode)
	}
	return nonEmpty(g.Name(), out)
}
