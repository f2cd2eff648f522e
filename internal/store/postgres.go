package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lumenpay/gateway/internal/config"
)

// PostgresStore implements Store on top of PostgreSQL via database/sql and
// lib/pq. Table names are held in fields set by newStore; no Option changes
// them.
type PostgresStore struct {
	db     *sql.DB
	ownsDB bool

	paymentsTable      string
	refundsTable       string
	subscriptionsTable string
	eventsTable        string
	idempotencyTable   string

	queryTimeout time.Duration
}

// Option configures a PostgresStore at construction time.
type Option func(*PostgresStore)

// WithQueryTimeout overrides the default per-statement timeout applied to
// every store operation's context.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *PostgresStore) { s.queryTimeout = d }
}

// NewPostgresStore opens a new connection pool and ensures the schema exists.
func NewPostgresStore(connectionString string, poolCfg config.PostgresPoolConfig, opts ...Option) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	config.ApplyPostgresPoolSettings(db, poolCfg)

	s := newStore(db, true, opts...)
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithDB builds a store over an already-open pool (e.g. one
// shared with another component), without taking ownership of it.
func NewPostgresStoreWithDB(db *sql.DB, opts ...Option) (*PostgresStore, error) {
	s := newStore(db, false, opts...)
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB, ownsDB bool, opts ...Option) *PostgresStore {
	s := &PostgresStore{
		db:                 db,
		ownsDB:             ownsDB,
		paymentsTable:      "payments",
		refundsTable:       "refunds",
		subscriptionsTable: "webhook_subscriptions",
		eventsTable:        "webhook_events",
		idempotencyTable:   "idempotency_records",
		queryTimeout:       2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *PostgresStore) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			idempotency_key TEXT UNIQUE,
			amount NUMERIC(20,8) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			payment_method TEXT NOT NULL DEFAULT '',
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.paymentsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status_created ON %s (status, created_at DESC)`, s.paymentsTable, s.paymentsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			payment_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			amount NUMERIC(20,8) NOT NULL,
			currency TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.refundsTable, s.paymentsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_payment_status ON %s (payment_id, status)`, s.refundsTable, s.refundsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			events TEXT[] NOT NULL DEFAULT '{}',
			active BOOLEAN NOT NULL DEFAULT true,
			secret TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.subscriptionsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			webhook_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			status TEXT NOT NULL,
			retry_count INT NOT NULL DEFAULT 0,
			max_retries INT NOT NULL DEFAULT 5,
			next_retry TIMESTAMPTZ,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.eventsTable, s.subscriptionsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_pending ON %s (status, next_retry) WHERE status = 'pending'`, s.eventsTable, s.eventsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			payment_id TEXT NOT NULL DEFAULT '',
			response JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL
		)`, s.idempotencyTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s (expires_at)`, s.idempotencyTable, s.idempotencyTable),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
