package oracle

import "context"

// MockOracle implements VisionOracle for testing.
type MockOracle struct {
	NameValue string
	AnalyzeFn func(ctx context.Context, images []Image, instructions string) (string, error)
	ChatFn    func(ctx context.Context, req ChatRequest) (string, error)
}

func (m *MockOracle) Name() string {
	if m.NameValue == "" {
		return "Mock"
	}
	return m.NameValue
}

func (m *MockOracle) Analyze(ctx context.Context, images []Image, instructions string) (string, error) {
	if m.AnalyzeFn != nil {
		return m.AnalyzeFn(ctx, images, instructions)
	}
	return "", ErrEmptyResponse
}

func (m *MockOracle) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if m.ChatFn != nil {
		return m.ChatFn(ctx, req)
	}
	return "", ErrEmptyResponse
}
