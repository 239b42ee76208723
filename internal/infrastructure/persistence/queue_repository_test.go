package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/facturasegura/backend/internal/domain/validation"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormQueueRepository_Insert(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormQueueRepository(db)

	item := validation.NewRetryQueueItem("doc-1", []byte(`{"id":"doc-1"}`), 1, time.Second)

	mock.ExpectExec(`INSERT INTO "validation_queue"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), item)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormQueueRepository_DueItems(t *testing.T) {
	t.Run("returns due pending items in priority order", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormQueueRepository(db)

		now := time.Now()
		id1, id2 := uuid.New(), uuid.New()
		rows := sqlmock.NewRows([]string{
			"id", "document_id", "payload", "priority", "attempts",
			"status", "next_retry_at", "created_at", "updated_at",
		}).
			AddRow(id1, "doc-1", `{"id":"doc-1"}`, 5, 1, "pending", now.Add(-time.Minute), now.Add(-time.Hour), now.Add(-time.Minute)).
			AddRow(id2, "doc-2", `{"id":"doc-2"}`, 0, 0, "pending", now.Add(-time.Second), now.Add(-time.Hour), now.Add(-time.Second))

		mock.ExpectQuery(`SELECT \* FROM "validation_queue" WHERE status = \$1 AND next_retry_at <= \$2 ORDER BY priority DESC, created_at ASC LIMIT \$3`).
			WillReturnRows(rows)

		items, err := repo.DueItems(context.Background(), now, 10)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "doc-1", items[0].DocumentID)
		assert.Equal(t, 1, items[0].Attempts)
		assert.Equal(t, validation.QueueStatusPending, items[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue yields no items", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormQueueRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "validation_queue"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		items, err := repo.DueItems(context.Background(), time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestGormQueueRepository_CountByStatus(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormQueueRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("pending", int64(3)).
		AddRow("failed", int64(1))

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS count FROM "validation_queue" GROUP BY "status"`).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[validation.QueueStatusPending])
	assert.Equal(t, int64(1), counts[validation.QueueStatusFailed])
}

func TestGormQueueRepository_ReleaseStale(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormQueueRepository(db)

	mock.ExpectExec(`UPDATE "validation_queue" SET`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	released, err := repo.ReleaseStale(context.Background(), time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)
	assert.NoError(t, mock.ExpectationsWereMet())
}
