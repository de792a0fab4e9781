package mocks

import (
	"context"

	"decompapi/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDecompileService struct {
	mock.Mock
}

func (m *MockDecompileService) Decompile(ctx context.Context, in service.DecompileInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) List(ctx context.Context, limit, offset int) (*service.InvocationListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InvocationListResult), args.Error(1)
}
