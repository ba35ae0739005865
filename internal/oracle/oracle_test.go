package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectcloudline/loss-assessment-service/internal/anthropic"
	"github.com/projectcloudline/loss-assessment-service/internal/gemini"
	"github.com/projectcloudline/loss-assessment-service/internal/openrouter"
)

type statusErr struct{ code int }

func (e statusErr) Error() string { return fmt.Sprintf("status %d", e.code) }

func statusOf(err error) (int, bool) {
	var se statusErr
	if errors.As(err, &se) {
		return se.code, true
	}
	return 0, false
}

func TestTransportErrorMessages(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "Gemini API Error (400): Bad Request. Please check your API key and request format. Details: status 400"},
		{http.StatusUnauthorized, "Gemini API Error (401): Invalid API key. Please check your credentials."},
		{http.StatusForbidden, "Gemini API Error (403): Forbidden. Please check your API key permissions."},
		{http.StatusNotFound, "Gemini API Error (404): Model not found. The specified model may not be available."},
		{http.StatusTooManyRequests, "Gemini API Error (429): Rate limit exceeded. Please try again later."},
		{http.StatusInternalServerError, "Gemini API Error (500): status 500"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := classify(context.Background(), "Gemini", statusErr{tt.status}, statusOf)
			assert.EqualError(t, err, tt.want)

			status, ok := StatusCode(err)
			assert.True(t, ok)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestTransportError_NoResponse(t *testing.T) {
	err := classify(context.Background(), "Qwen", errors.New("dial tcp: i/o timeout"), statusOf)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.Contains(t, te.Error(), "No response received")
	assert.True(t, IsUnavailable(err))
	assert.False(t, IsRateLimited(err))
}

func TestClassify_CancelledContextPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classify(ctx, "Gemini", statusErr{500}, statusOf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsUnavailable(err))
}

func TestGemini_Analyze(t *testing.T) {
	client := &gemini.MockClient{
		GenerateContentFn: func(ctx context.Context, model string, parts []gemini.Part, config *gemini.GenerateConfig) (string, error) {
			assert.Equal(t, "gemini-2.0-flash", model)
			require.Len(t, parts, 3)
			assert.Equal(t, "describe", parts[0].Text)
			assert.Equal(t, "image/png", parts[2].MIMEType)
			return "**1. Type of Damage:** Fire", nil
		},
	}
	o := NewGemini(client, "gemini-2.0-flash")

	out, err := o.Analyze(context.Background(), []Image{
		{Data: []byte{1}, MIMEType: "image/jpeg"},
		{Data: []byte{2}, MIMEType: "image/png"},
	}, "describe")
	require.NoError(t, err)
	assert.Equal(t, "**1. Type of Damage:** Fire", out)
}

func TestGemini_EmptyResponse(t *testing.T) {
	client := &gemini.MockClient{
		GenerateContentFn: func(ctx context.Context, model string, parts []gemini.Part, config *gemini.GenerateConfig) (string, error) {
			return "   ", nil
		},
	}
	_, err := NewGemini(client, "m").Analyze(context.Background(), nil, "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.True(t, IsUnavailable(err))
}

func TestGemini_ChatMapsRolesAndDropsLeadingAssistant(t *testing.T) {
	client := &gemini.MockClient{
		ConverseFn: func(ctx context.Context, model string, turns []gemini.Turn, config *gemini.GenerateConfig) (string, error) {
			require.Len(t, turns, 3)
			assert.Equal(t, gemini.Turn{Role: "user", Text: "what is the severity?"}, turns[0])
			assert.Equal(t, gemini.Turn{Role: "model", Text: "High."}, turns[1])
			assert.Equal(t, gemini.Turn{Role: "user", Text: "and the cost?"}, turns[2])
			assert.Equal(t, "persona", config.SystemInstruction)
			return "About $500.", nil
		},
	}

	out, err := NewGemini(client, "m").Chat(context.Background(), ChatRequest{
		SystemPrompt: "persona",
		History: []Message{
			{Role: RoleAssistant, Content: "Hello!"},
			{Role: RoleUser, Content: "what is the severity?"},
			{Role: RoleAssistant, Content: "High."},
		},
		NewMessage: "and the cost?",
	})
	require.NoError(t, err)
	assert.Equal(t, "About $500.", out)
}

func TestOpenRouter_ChatIncludesSystemPrompt(t *testing.T) {
	client := &openrouter.MockClient{
		CompleteFn: func(ctx context.Context, req openrouter.Request) (string, error) {
			assert.Equal(t, "qwen/qwen3-vl-8b-instruct", req.Model)
			require.Len(t, req.Messages, 3)
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "assistant", req.Messages[1].Role)
			assert.Equal(t, "user", req.Messages[2].Role)
			return "reply", nil
		},
	}

	o := NewOpenRouter(client, "qwen/qwen3-vl-8b-instruct", "")
	assert.Equal(t, "Qwen", o.Name())

	out, err := o.Chat(context.Background(), ChatRequest{
		SystemPrompt: "persona",
		History:      []Message{{Role: RoleAssistant, Content: "Hi"}},
		NewMessage:   "help",
	})
	require.NoError(t, err)
	assert.Equal(t, "reply", out)
}

func TestOpenRouter_AnalyzeRateLimited(t *testing.T) {
	client := &openrouter.MockClient{
		CompleteFn: func(ctx context.Context, req openrouter.Request) (string, error) {
			require.Len(t, req.Messages, 1)
			assert.Len(t, req.Messages[0].Images, 1)
			return "", statusErr{429}
		},
	}
	o := NewOpenRouter(client, "m", "LLaVA")

	_, err := o.Analyze(context.Background(), []Image{{Data: []byte{1}}}, "x")
	require.Error(t, err)
	// openrouter.StatusCode does not know statusErr, so no status is recovered.
	assert.False(t, IsRateLimited(err))
	assert.True(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), "LLaVA API Error")
}

func TestAnthropic_AnalyzePutsImagesBeforeText(t *testing.T) {
	client := &anthropic.MockClient{
		CreateMessageFn: func(ctx context.Context, req anthropic.Request) (string, error) {
			require.Len(t, req.Messages, 1)
			parts := req.Messages[0].Content
			require.Len(t, parts, 2)
			assert.NotNil(t, parts[0].ImageData)
			assert.Equal(t, "describe", parts[1].Text)
			return "ok", nil
		},
	}
	out, err := NewAnthropic(client, "claude").Analyze(context.Background(), []Image{{Data: []byte{1}, MIMEType: "image/jpeg"}}, "describe")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestFallback(t *testing.T) {
	failing := &MockOracle{NameValue: "Primary", ChatFn: func(ctx context.Context, req ChatRequest) (string, error) {
		return "", &TransportError{Backend: "Primary", StatusCode: 503, Message: "down"}
	}}
	working := &MockOracle{NameValue: "Secondary", ChatFn: func(ctx context.Context, req ChatRequest) (string, error) {
		return "from secondary", nil
	}}

	f := &Fallback{Primary: failing, Secondary: working}
	out, err := f.Chat(context.Background(), ChatRequest{NewMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from secondary", out)
	assert.Equal(t, "Primary", f.Name())

	both := &Fallback{Primary: failing, Secondary: &MockOracle{}}
	_, err = both.Chat(context.Background(), ChatRequest{NewMessage: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	cancelled := &Fallback{Primary: &MockOracle{AnalyzeFn: func(ctx context.Context, images []Image, instructions string) (string, error) {
		return "", context.Canceled
	}}, Secondary: working}
	_, err = cancelled.Analyze(context.Background(), nil, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{
		"":          BackendGemini,
		"Gemini":    BackendGemini,
		"qwen":      BackendOpenRouter,
		"llava":     BackendOpenRouter,
		"anthropic": BackendAnthropic,
	} {
		got, err := ParseBackend(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseBackend("watson")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	o, err := New(BackendAnthropic, Clients{Anthropic: &anthropic.MockClient{}}, Models{Anthropic: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "Claude", o.Name())

	_, err = New(BackendGemini, Clients{}, Models{})
	assert.Error(t, err)
}
