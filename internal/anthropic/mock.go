package anthropic

import "context"

// MockClient implements the Client interface for testing.
type MockClient struct {
	CreateMessageFn func(ctx context.Context, req Request) (string, error)
}

func (m *MockClient) CreateMessage(ctx context.Context, req Request) (string, error) {
	if m.CreateMessageFn != nil {
		return m.CreateMessageFn(ctx, req)
	}
	return "", nil
}
