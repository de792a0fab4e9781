package mocks

import (
	"context"

	"decompapi/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStager struct {
	mock.Mock
}

func (m *MockStager) Stage(ctx context.Context, data []byte) (*storage.StagedFile, error) {
	args := m.Called(ctx, data)
	if f, ok := args.Get(0).(func(context.Context, []byte) *storage.StagedFile); ok {
		return f(ctx, data), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StagedFile), args.Error(1)
}
