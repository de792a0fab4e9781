package mocks

import (
	"context"

	"decompapi/internal/model"
	"decompapi/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockInvocationRepository struct {
	mock.Mock
}

func (m *MockInvocationRepository) Create(ctx context.Context, rec *model.InvocationRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockInvocationRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.InvocationRecord], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.InvocationRecord]), args.Error(1)
}
