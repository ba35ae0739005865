package anthropic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_CreateMessage(t *testing.T) {
	mock := &MockClient{
		CreateMessageFn: func(ctx context.Context, req Request) (string, error) {
			assert.Equal(t, "claude-haiku-4-5-20251001", req.Model)
			assert.Equal(t, int64(2048), req.MaxTokens)
			assert.Equal(t, "You are an insurance claims expert.", req.System)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "user", req.Messages[0].Role)
			return "**1. Type of Damage:** Hail", nil
		},
	}

	result, err := mock.CreateMessage(context.Background(), Request{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 2048,
		System:    "You are an insurance claims expert.",
		Messages: []Message{{
			Role: "user",
			Content: []ContentPart{
				{Text: "Describe the damage"},
				{ImageData: []byte("image-data"), MIMEType: "image/jpeg"},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "**1. Type of Damage:** Hail", result)
}

func TestMockClient_NoFunction(t *testing.T) {
	mock := &MockClient{}

	result, err := mock.CreateMessage(context.Background(), Request{Model: "model", MaxTokens: 1024})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestTrimLeadingAssistant(t *testing.T) {
	msgs := []Message{
		{Role: "assistant", Content: []ContentPart{{Text: "Hello! How can I help?"}}},
		{Role: "user", Content: []ContentPart{{Text: "What is my severity?"}}},
		{Role: "assistant", Content: []ContentPart{{Text: "High."}}},
	}

	got := TrimLeadingAssistant(msgs)
	require.Len(t, got, 2)
	assert.Equal(t, "user", got[0].Role)

	assert.Empty(t, TrimLeadingAssistant(msgs[:1]))
	assert.Empty(t, TrimLeadingAssistant(nil))
}

func TestStatusCode_NonAPIError(t *testing.T) {
	_, ok := StatusCode(fmt.Errorf("create message: %w", errors.New("dial tcp: timeout")))
	assert.False(t, ok)
}
