package service

import (
	"context"
	"errors"

	"decompapi/internal/model"
	"decompapi/internal/repository"
)

// ErrAuditDisabled is returned when the audit log has no backing store.
var ErrAuditDisabled = errors.New("invocation audit log is disabled")

// InvocationListResult is the service-level DTO for paginated audit records.
type InvocationListResult struct {
	Items []model.InvocationRecord `json:"data"`
	Total int                      `json:"total"`
}

// AuditService exposes the invocation audit log.
type AuditService interface {
	List(ctx context.Context, limit, offset int) (*InvocationListResult, error)
}

type auditService struct {
	repo repository.InvocationRepository
}

// NewAuditService constructs an AuditService. A nil repo yields ErrAuditDisabled.
func NewAuditService(repo repository.InvocationRepository) AuditService {
	return &auditService{repo: repo}
}

// List returns paginated audit records without exposing repository types.
func (s *auditService) List(ctx context.Context, limit, offset int) (*InvocationListResult, error) {
	if s.repo == nil {
		return nil, ErrAuditDisabled
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &InvocationListResult{Items: res.Items, Total: res.Total}, nil
}
