package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_GenerateContent(t *testing.T) {
	mock := &MockClient{
		GenerateContentFn: func(ctx context.Context, model string, parts []Part, config *GenerateConfig) (string, error) {
			assert.Equal(t, "gemini-2.0-flash", model)
			assert.Len(t, parts, 2)
			return "**1. Type of Damage:** Water damage", nil
		},
	}

	result, err := mock.GenerateContent(context.Background(), "gemini-2.0-flash", []Part{
		{Text: "Analyze this image for an insurance claim"},
		{Data: []byte("image-data"), MIMEType: "image/jpeg"},
	}, &GenerateConfig{Temperature: floatPtr(0.4)})

	require.NoError(t, err)
	assert.Equal(t, "**1. Type of Damage:** Water damage", result)
}

func TestMockClient_Converse(t *testing.T) {
	mock := &MockClient{
		ConverseFn: func(ctx context.Context, model string, turns []Turn, config *GenerateConfig) (string, error) {
			require.Len(t, turns, 3)
			assert.Equal(t, "model", turns[1].Role)
			assert.Equal(t, "user", turns[2].Role)
			assert.Contains(t, config.SystemInstruction, "claims")
			return "File the claim within 30 days.", nil
		},
	}

	result, err := mock.Converse(context.Background(), "gemini-2.0-flash", []Turn{
		{Role: "user", Text: "hi"},
		{Role: "model", Text: "Hello!"},
		{Role: "user", Text: "When should I file?"},
	}, &GenerateConfig{SystemInstruction: "You are an insurance claims assistant."})

	require.NoError(t, err)
	assert.Equal(t, "File the claim within 30 days.", result)
}

func TestMockClient_EmbedContent(t *testing.T) {
	mock := &MockClient{
		EmbedContentFn: func(ctx context.Context, model string, text string) ([]float32, error) {
			assert.Equal(t, "gemini-embedding-001", model)
			assert.Equal(t, "roof hail damage", text)
			return []float32{0.1, 0.2, 0.3, 0.4}, nil
		},
	}

	result, err := mock.EmbedContent(context.Background(), "gemini-embedding-001", "roof hail damage")
	require.NoError(t, err)
	assert.Len(t, result, 4)
}

func TestMockClient_Defaults(t *testing.T) {
	mock := &MockClient{}

	text, err := mock.GenerateContent(context.Background(), "m", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = mock.Converse(context.Background(), "m", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, text)

	vec, err := mock.EmbedContent(context.Background(), "m", "x")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestBuildConfig(t *testing.T) {
	assert.Nil(t, buildConfig(nil))

	cfg := buildConfig(&GenerateConfig{
		Temperature:       floatPtr(0.2),
		SystemInstruction: "be brief",
	})
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.2, float64(*cfg.Temperature), 1e-6)
	require.NotNil(t, cfg.SystemInstruction)
	require.Len(t, cfg.SystemInstruction.Parts, 1)
	assert.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)
}

func TestFirstText_Empty(t *testing.T) {
	assert.Empty(t, firstText(nil))
}

func TestStatusCode_NonAPIError(t *testing.T) {
	_, ok := StatusCode(errors.New("connection reset"))
	assert.False(t, ok)
}

func floatPtr(f float32) *float32 {
	return &f
}
