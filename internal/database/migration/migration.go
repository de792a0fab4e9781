package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelQuery reports whether the audit schema is already in place.
const sentinelQuery = "SELECT to_regclass('public.invocations') IS NOT NULL"

var steps = []migrationStep{
	{
		Name: "create_table_invocations",
		SQL: `CREATE TABLE IF NOT EXISTS invocations (
  id             UUID        PRIMARY KEY,
  request_id     TEXT        NOT NULL,
  payload_size   BIGINT      NOT NULL CHECK (payload_size >= 0),
  payload_sha256 TEXT        NOT NULL,
  encoding       TEXT        NOT NULL,
  dialect        TEXT        NOT NULL,
  outcome        TEXT        NOT NULL,
  duration_ms    BIGINT      NOT NULL CHECK (duration_ms >= 0),
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_invocations_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_invocations_created_at ON invocations (created_at DESC, id DESC);`,
	},
	{
		Name: "create_index_invocations_outcome",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_invocations_outcome ON invocations (outcome);`,
	},
	{
		Name: "create_index_invocations_payload_sha256",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_invocations_payload_sha256 ON invocations (payload_sha256);`,
	},
}

// EnsureMigrated creates the invocation audit schema unless the sentinel table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *zap.Logger, dbHost string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "database"), zap.String("db_host", dbHost))
	start := time.Now()

	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	if err := db.QueryRowContext(ctx, sentinelQuery).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
