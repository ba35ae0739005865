package oracle

import (
	"fmt"
	"strings"

	"github.com/projectcloudline/loss-assessment-service/internal/anthropic"
	"github.com/projectcloudline/loss-assessment-service/internal/gemini"
	"github.com/projectcloudline/loss-assessment-service/internal/openrouter"
)

// Backend names a VisionOracle implementation.
type Backend string

const (
	BackendGemini     Backend = "gemini"
	BackendOpenRouter Backend = "openrouter"
	BackendAnthropic  Backend = "anthropic"
)

// ParseBackend resolves a configured backend name. "qwen" and "llava" are
// aliases for OpenRouter; an empty name selects Gemini.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini":
		return BackendGemini, nil
	case "openrouter", "qwen", "llava":
		return BackendOpenRouter, nil
	case "anthropic", "claude":
		return BackendAnthropic, nil
	}
	return "", fmt.Errorf("unknown oracle backend %q", name)
}

// Clients holds the transport clients a backend may need. Only the client of
// the selected backend has to be set.
type Clients struct {
	Gemini     gemini.Client
	OpenRouter openrouter.Client
	Anthropic  anthropic.Client
}

// Models holds the model identifier per backend.
type Models struct {
	Gemini          string
	OpenRouter      string
	OpenRouterLabel string
	Anthropic       string
}

// New builds the oracle for backend from the matching client.
func New(backend Backend, clients Clients, models Models) (VisionOracle, error) {
	switch backend {
	case BackendGemini:
		if clients.Gemini == nil {
			return nil, fmt.Errorf("gemini backend selected without a client")
		}
		return NewGemini(clients.Gemini, models.Gemini), nil
	case BackendOpenRouter:
		if clients.OpenRouter == nil {
			return nil, fmt.Errorf("openrouter backend selected without a client")
		}
		return NewOpenRouter(clients.OpenRouter, models.OpenRouter, models.OpenRouterLabel), nil
	case BackendAnthropic:
		if clients.Anthropic == nil {
			return nil, fmt.Errorf("anthropic backend selected without a client")
		}
		return NewAnthropic(clients.Anthropic, models.Anthropic), nil
	}
	return nil, fmt.Errorf("unknown oracle backend %q", backend)
}
