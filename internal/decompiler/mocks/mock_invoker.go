package mocks

import (
	"context"

	"decompapi/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockInvoker struct {
	mock.Mock
}

func (m *MockInvoker) Invoke(ctx context.Context, path string, opts model.DecompileOptions) model.InvocationResult {
	args := m.Called(ctx, path, opts)
	if f, ok := args.Get(0).(func(context.Context, string, model.DecompileOptions) model.InvocationResult); ok {
		return f(ctx, path, opts)
	}
	return args.Get(0).(model.InvocationResult)
}

func (m *MockInvoker) Available() error {
	args := m.Called()
	return args.Error(0)
}
