package postgres

import (
	"context"
	"database/sql"

	"decompapi/internal/model"
	"decompapi/internal/repository"
)

// InvocationPostgres is a PostgreSQL implementation of repository.InvocationRepository.
type InvocationPostgres struct {
	db *sql.DB
}

// NewInvocationPostgres creates a new InvocationPostgres repository.
func NewInvocationPostgres(db *sql.DB) *InvocationPostgres {
	return &InvocationPostgres{db: db}
}

var _ repository.InvocationRepository = (*InvocationPostgres)(nil)

const invocationColumns = `id, request_id, payload_size, payload_sha256, encoding, dialect, outcome, duration_ms, created_at`

// Create inserts a new audit row.
func (r *InvocationPostgres) Create(ctx context.Context, rec *model.InvocationRecord) error {
	const q = `
		INSERT INTO invocations (` + invocationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.RequestID,
		rec.PayloadSize,
		rec.PayloadSHA256,
		rec.Encoding,
		rec.Dialect,
		rec.Outcome,
		rec.DurationMS,
		rec.CreatedAt,
	)
	return err
}

// List returns audit rows using LIMIT/OFFSET pagination and a total count.
func (r *InvocationPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.InvocationRecord], error) {
	const qCount = `SELECT COUNT(*) FROM invocations`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + invocationColumns + `
		FROM invocations
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.InvocationRecord, 0)
	for rows.Next() {
		var rec model.InvocationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.PayloadSize,
			&rec.PayloadSHA256,
			&rec.Encoding,
			&rec.Dialect,
			&rec.Outcome,
			&rec.DurationMS,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.InvocationRecord]{
		Items: items,
		Total: total,
	}, nil
}
