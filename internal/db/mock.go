package db

import "context"

// MockDB implements DB for testing.
type MockDB struct {
	QueryFn  func(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
	InsertFn func(ctx context.Context, sql string, args ...any) (string, error)
	ExecFn   func(ctx context.Context, sql string, args ...any) (int64, error)
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	if m.QueryFn != nil {
		return m.QueryFn(ctx, sql, args...)
	}
	return nil, nil
}

func (m *MockDB) Insert(ctx context.Context, sql string, args ...any) (string, error) {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, sql, args...)
	}
	return "1", nil
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if m.ExecFn != nil {
		return m.ExecFn(ctx, sql, args...)
	}
	return 1, nil
}
