package repository

import (
	"context"

	"decompapi/internal/model"
)

// InvocationRepository persists the invocation audit log using SQL queries only.
// No business logic here, strictly persistence operations.
type InvocationRepository interface {
	// Create inserts one audit record. ID and CreatedAt must be set by the caller.
	Create(ctx context.Context, rec *model.InvocationRecord) error

	// List returns a page of audit records, newest first, and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.InvocationRecord], error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
