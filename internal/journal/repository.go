package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	EventCheckoutCompleted                  = "checkout.completed"
	EventOrderPersistenceFailedAfterPayment = "checkout.order_persistence_failed_after_payment"
)

var (
	ErrUnknownDriver = errors.New("unknown journal driver")
	ErrEventNotFound = errors.New("outbox event not found")
)

//go:embed migrations
var migrationsFS embed.FS

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type Repository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

type RepoInterface interface {
	Append(ctx context.Context, aggregateID, eventType string, payload []byte) (int64, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	Close() error
}

// Open connects to a sqlite file or a postgres DSN.
func Open(driver, dsn string) (*Repository, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	if driver == DriverSQLite && !strings.HasPrefix(dsn, "file:") && !strings.HasPrefix(dsn, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
	}
	return NewRepository(db, driver), nil
}

func NewRepository(db *sql.DB, driver string) *Repository {
	return &Repository{db: db, driver: driver, now: time.Now}
}

func (r *Repository) RunMigrations() error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, r.driver)
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+r.driver)
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, r.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// Append stores an event and returns its id.
func (r *Repository) Append(ctx context.Context, aggregateID, eventType string, payload []byte) (int64, error) {
	query := `
		INSERT INTO checkout_outbox (aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, aggregateID, eventType, string(payload), r.now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append outbox event: %w", err)
	}
	return id, nil
}

// GetUnprocessedEvents returns the oldest unpublished events first.
func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, created_at, processed_at
		FROM checkout_outbox
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1
	`
	return r.queryEvents(ctx, query, limit)
}

// GetEventsByType lists every event of one type, newest first.
func (r *Repository) GetEventsByType(ctx context.Context, eventType string, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, created_at, processed_at
		FROM checkout_outbox
		WHERE event_type = $1
		ORDER BY id DESC
		LIMIT $2
	`
	return r.queryEvents(ctx, query, eventType, limit)
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		var processed sql.NullTime
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt, &processed); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		if processed.Valid {
			t := processed.Time
			e.ProcessedAt = &t
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	query := `UPDATE checkout_outbox SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event %d as processed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark event %d as processed: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
