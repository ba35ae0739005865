// Package oracle defines the vision-language model boundary used by the
// assessment pipeline and the chat assistant, and adapts the Gemini,
// OpenRouter and Anthropic clients to it.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// VisionOracle answers free-form prompts about images and holds chat turns.
// Implementations never retry; callers decide whether to retry, fall back to
// another oracle or surface the error.
type VisionOracle interface {
	// Analyze sends one or more images with the instructions and returns the
	// model's raw text.
	Analyze(ctx context.Context, images []Image, instructions string) (string, error)
	// Chat sends the system prompt, prior turns and the new user message.
	Chat(ctx context.Context, req ChatRequest) (string, error)
	// Name is a human-readable backend label, e.g. "Gemini".
	Name() string
}

// Image is an encoded photo as sent to a model.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior chat turn.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is the logical chat request shape shared by all backends.
type ChatRequest struct {
	SystemPrompt string
	History      []Message
	NewMessage   string
}

// ErrEmptyResponse is returned when a backend answers without any candidate
// or choice, or with blank text.
var ErrEmptyResponse = errors.New("empty response from model")

// TransportError reports a failed call to a model backend. StatusCode is zero
// when no HTTP response was received.
type TransportError struct {
	Backend    string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API Error: %s", e.Backend, e.Message)
	}
	return fmt.Sprintf("%s API Error (%d): %s", e.Backend, e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// newTransportError builds a TransportError with a user-facing message for the
// status codes the backends commonly return.
func newTransportError(backend string, status int, err error) *TransportError {
	var msg string
	switch status {
	case 0:
		msg = "No response received. Please check your internet connection."
		if err != nil {
			msg = fmt.Sprintf("No response received (%v). Please check your internet connection.", err)
		}
	case http.StatusBadRequest:
		msg = fmt.Sprintf("Bad Request. Please check your API key and request format. Details: %v", err)
	case http.StatusUnauthorized:
		msg = "Invalid API key. Please check your credentials."
	case http.StatusForbidden:
		msg = "Forbidden. Please check your API key permissions."
	case http.StatusNotFound:
		msg = "Model not found. The specified model may not be available."
	case http.StatusTooManyRequests:
		msg = "Rate limit exceeded. Please try again later."
	default:
		msg = fmt.Sprintf("%v", err)
	}
	return &TransportError{Backend: backend, StatusCode: status, Message: msg, Err: err}
}

// classify turns a backend error into the error returned to callers.
// Context cancellation passes through untouched.
func classify(ctx context.Context, backend string, err error, statusOf func(error) (int, bool)) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	status, _ := statusOf(err)
	return newTransportError(backend, status, err)
}

// StatusCode returns the HTTP status carried by a TransportError in err's chain.
func StatusCode(err error) (int, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode, true
	}
	return 0, false
}

// IsRateLimited reports whether err is a 429 from a backend.
func IsRateLimited(err error) bool {
	status, ok := StatusCode(err)
	return ok && status == http.StatusTooManyRequests
}

// IsUnavailable reports whether err means the oracle could not produce an
// answer: a transport failure or an empty response.
func IsUnavailable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrEmptyResponse)
}

func nonEmpty(backend, out string) (string, error) {
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%s: %w", backend, ErrEmptyResponse)
	}
	return out, nil
}

// dropLeadingAssistant removes assistant turns that precede the first user
// turn, such as a stored greeting.
func dropLeadingAssistant(history []Message) []Message {
	for i, m := range history {
		if m.Role == RoleUser {
			return history[i:]
		}
	}
	return nil
}
