package event

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.Exec(`
		CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			event_id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			payload BLOB NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 5,
			last_error TEXT,
			next_retry_at DATETIME,
			processed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error
	require.NoError(t, err)
	return db
}

func newStoredEntry(t *testing.T, repo *GormOutboxRepository, createdAt time.Time) *shared.OutboxEntry {
	t.Helper()
	entry := shared.NewOutboxEntry(newTestEvent("DepositPaid", testTenantID), []byte(`{"data":"x"}`), createdAt)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

// ==================== GormOutboxRepository Tests ====================

func TestGormOutboxRepository_SaveAndFindPending(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	second := newStoredEntry(t, repo, base.Add(time.Minute))
	first := newStoredEntry(t, repo, base)

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
	assert.Equal(t, []byte(`{"data":"x"}`), pending[0].Payload)

	limited, err := repo.FindPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormOutboxRepository_MarkProcessing(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxTestDB(t))
	ctx := context.Background()
	entry := newStoredEntry(t, repo, time.Now().UTC())

	claimed, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, shared.OutboxStatusProcessing, claimed[0].Status)

	again, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	assert.Empty(t, again, "an entry is claimed once")

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGormOutboxRepository_MarkProcessingUsesClock(t *testing.T) {
	claimedAt := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	repo := NewGormOutboxRepository(setupOutboxTestDB(t), WithOutboxRepositoryClock(func() time.Time { return claimedAt }))
	ctx := context.Background()
	entry := newStoredEntry(t, repo, claimedAt.Add(-time.Hour))

	claimed, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.True(t, claimed[0].UpdatedAt.Equal(claimedAt))
	assert.True(t, claimed[0].CreatedAt.Equal(claimedAt.Add(-time.Hour)), "insert keeps the publisher's timestamp")
	assert.Equal(t, "DepositPaid", claimed[0].EventType)
	assert.Equal(t, testTenantID, claimed[0].TenantID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusProcessing])
}

func TestGormOutboxRepository_RetryLifecycle(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	entry := newStoredEntry(t, repo, now)

	entry.MarkFailed("smtp down", now)
	require.NoError(t, repo.Update(ctx, entry))

	due, err := repo.FindRetryable(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.FindRetryable(ctx, now.Add(2*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].RetryCount)
	assert.Equal(t, "smtp down", due[0].LastError)

	entry.MarkSent(now.Add(3 * time.Second))
	require.NoError(t, repo.Update(ctx, entry))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[shared.OutboxStatus]int64{shared.OutboxStatusSent: 1}, counts)

	deleted, err := repo.DeleteOlderThan(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	deleted, err = repo.DeleteOlderThan(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestGormOutboxRepository_SaveNothing(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, NewGormOutboxRepository(db).Save(context.Background()))
	claimed, err := NewGormOutboxRepository(db).MarkProcessing(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
