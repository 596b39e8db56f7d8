package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *Repository {
	repo, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations())
	return repo
}

func exerciseOutbox(t *testing.T, repo *Repository) {
	ctx := context.Background()

	id1, err := repo.Append(ctx, "chk-1", EventCheckoutCompleted, []byte(`{"checkout_id":"chk-1"}`))
	require.NoError(t, err)
	id2, err := repo.Append(ctx, "chk-2", EventOrderPersistenceFailedAfterPayment, []byte(`{"payment_id":"pi_2"}`))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, id1, events[0].ID)
	assert.Equal(t, "chk-1", events[0].AggregateID)
	assert.JSONEq(t, `{"checkout_id":"chk-1"}`, string(events[0].Payload))
	assert.Nil(t, events[0].ProcessedAt)
	assert.False(t, events[0].CreatedAt.IsZero())

	require.NoError(t, repo.MarkEventAsProcessed(ctx, id1))
	assert.ErrorIs(t, repo.MarkEventAsProcessed(ctx, id1), ErrEventNotFound)

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id2, events[0].ID)

	failed, err := repo.GetEventsByType(ctx, EventOrderPersistenceFailedAfterPayment, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "chk-2", failed[0].AggregateID)
}

func TestSQLiteOutbox(t *testing.T) {
	exerciseOutbox(t, setupSQLite(t))
}

func TestSQLite_MigrationsIdempotent(t *testing.T) {
	repo := setupSQLite(t)
	assert.NoError(t, repo.RunMigrations())
}

func TestSQLite_UnprocessedLimit(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := repo.Append(ctx, "chk", EventCheckoutCompleted, []byte(`{}`))
		require.NoError(t, err)
	}

	events, err := repo.GetUnprocessedEvents(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, DriverPostgres)
	repo.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return repo, mock
}

func TestAppend_DatabaseError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO checkout_outbox").
		WithArgs("chk-1", EventCheckoutCompleted, `{}`, sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	_, err := repo.Append(context.Background(), "chk-1", EventCheckoutCompleted, []byte(`{}`))
	assert.ErrorContains(t, err, "failed to append outbox event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnprocessedEvents_ScanError(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "created_at", "processed_at"}).
		AddRow("not-a-number", "chk", EventCheckoutCompleted, []byte(`{}`), time.Now(), nil)
	mock.ExpectQuery("SELECT id, aggregate_id").WithArgs(100).WillReturnRows(rows)

	_, err := repo.GetUnprocessedEvents(context.Background(), 100)
	assert.ErrorContains(t, err, "failed to scan outbox event")
}

func TestGetUnprocessedEvents_ProcessedAt(t *testing.T) {
	repo, mock := newMockRepo(t)
	processed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "created_at", "processed_at"}).
		AddRow(int64(7), "chk", EventCheckoutCompleted, []byte(`{}`), processed, processed)
	mock.ExpectQuery("SELECT id, aggregate_id").WithArgs(1).WillReturnRows(rows)

	events, err := repo.GetUnprocessedEvents(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].ProcessedAt)
	assert.Equal(t, processed, *events[0].ProcessedAt)
}

func TestMarkEventAsProcessed_Errors(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE checkout_outbox").
		WithArgs(sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE checkout_outbox").
		WithArgs(sqlmock.AnyArg(), int64(4)).
		WillReturnError(errors.New("connection reset"))

	assert.ErrorIs(t, repo.MarkEventAsProcessed(context.Background(), 3), ErrEventNotFound)
	assert.ErrorContains(t, repo.MarkEventAsProcessed(context.Background(), 4), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
