package openrouter

import "context"

// MockClient implements the Client interface for testing.
type MockClient struct {
	CompleteFn func(ctx context.Context, req Request) (string, error)
}

func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, req)
	}
	return "", nil
}
