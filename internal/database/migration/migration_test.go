package migration

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnsureMigrated(t *testing.T) {
	sentinel := regexp.QuoteMeta(sentinelQuery)

	t.Run("skips when schema exists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(sentinel).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		core, logs := observer.New(zap.InfoLevel)
		err = EnsureMigrated(context.Background(), db, zap.New(core), "db.local")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, 1, logs.FilterMessage("db_migration_skip").Len())
	})

	t.Run("runs every step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(sentinel).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		for _, step := range steps {
			mock.ExpectExec(regexp.QuoteMeta(step.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		}

		core, logs := observer.New(zap.InfoLevel)
		err = EnsureMigrated(context.Background(), db, zap.New(core), "db.local")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, len(steps), logs.FilterMessage("db_migration_step").Len())
		assert.Equal(t, 1, logs.FilterMessage("db_migration_success").Len())
	})

	t.Run("stops at failing step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(sentinel).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta(steps[0].SQL)).WillReturnError(errors.New("permission denied"))

		err = EnsureMigrated(context.Background(), db, nil, "db.local")

		require.Error(t, err)
		assert.Contains(t, err.Error(), steps[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sentinel query error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(sentinel).WillReturnError(errors.New("connection reset"))

		err = EnsureMigrated(context.Background(), db, nil, "db.local")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to check sentinel table")
	})
}
