package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"propshare/internal/journal"
	"propshare/internal/ledger"
	"propshare/pkg/domain"
	"propshare/pkg/platform/sentinel"
	txcontext "propshare/pkg/platform/tx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	uniqueViolation = "23505"
	migrationsTable = "propshare_migrations"
)

// Open connects with driverName ("pgx" or "postgres") and pings the server.
func Open(ctx context.Context, driverName, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations and returns how many ran.
func Migrate(db *sqlx.DB) (int, error) {
	migrate.SetTable(migrationsTable)
	src := &migrate.EmbedFileSystemMigrationSource{FileSystem: migrationsFS, Root: "migrations"}
	n, err := migrate.Exec(db.DB, "postgres", src, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("apply journal migrations: %w", err)
	}
	return n, nil
}

// Postgres stores the journal in the ledger_events table.
type Postgres struct {
	db        *sqlx.DB
	txTimeout time.Duration
}

type PostgresOption func(*Postgres)

// WithTxTimeout bounds transactions whose context carries no deadline.
// Zero keeps txcontext.DefaultTimeout.
func WithTxTimeout(d time.Duration) PostgresOption {
	return func(s *Postgres) {
		s.txTimeout = d
	}
}

func NewPostgres(db *sqlx.DB, opts ...PostgresOption) *Postgres {
	s := &Postgres{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type recordRow struct {
	Sequence    int64     `db:"sequence"`
	EventID     uuid.UUID `db:"event_id"`
	EventType   string    `db:"event_type"`
	AggregateID string    `db:"aggregate_id"`
	Caller      string    `db:"caller"`
	OccurredAt  time.Time `db:"occurred_at"`
	Payload     []byte    `db:"payload"`
}

func (r recordRow) toRecord() (journal.Record, error) {
	var caller domain.Address
	if err := caller.UnmarshalText([]byte(r.Caller)); err != nil {
		return journal.Record{}, fmt.Errorf("record %d caller: %w", r.Sequence, err)
	}
	return journal.Record{
		Sequence:    uint64(r.Sequence),
		EventID:     r.EventID,
		Type:        ledger.EventType(r.EventType),
		AggregateID: r.AggregateID,
		Caller:      caller,
		OccurredAt:  r.OccurredAt.UTC(),
		Payload:     json.RawMessage(r.Payload),
	}, nil
}

type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func (s *Postgres) queryer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn in a transaction; Append calls inside fn join it.
func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.RunInTx(ctx, s.db, s.txTimeout, fn)
}

func (s *Postgres) Append(ctx context.Context, records ...journal.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.RunInTx(ctx, func(ctx context.Context) error {
		q := s.queryer(ctx)
		// Serialises concurrent appenders so the gap check below holds.
		if _, err := q.ExecContext(ctx, `LOCK TABLE ledger_events IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock ledger_events: %w", err)
		}
		last, err := s.lastSequence(ctx, q)
		if err != nil {
			return err
		}
		if records[0].Sequence <= last {
			return fmt.Errorf("sequence %d already stored: %w", records[0].Sequence, sentinel.ErrConflict)
		}
		if err := journal.CheckContiguous(last, records); err != nil {
			return fmt.Errorf("%v: %w", err, sentinel.ErrOutOfOrder)
		}

		const query = `
			INSERT INTO ledger_events (sequence, event_id, event_type, aggregate_id, caller, occurred_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, rec := range records {
			_, err := q.ExecContext(ctx, query,
				int64(rec.Sequence),
				rec.EventID,
				string(rec.Type),
				rec.AggregateID,
				rec.Caller.Hex(),
				rec.OccurredAt,
				[]byte(rec.Payload),
			)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("insert record %d: %w", rec.Sequence, sentinel.ErrConflict)
				}
				return fmt.Errorf("insert record %d: %w", rec.Sequence, err)
			}
		}
		return nil
	})
}

func (s *Postgres) ListAfter(ctx context.Context, after uint64, limit int) ([]journal.Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `
		SELECT sequence, event_id, event_type, aggregate_id, caller, occurred_at, payload
		FROM ledger_events
		WHERE sequence > $1
		ORDER BY sequence ASC
		LIMIT $2
	`
	var rows []recordRow
	if err := s.queryer(ctx).SelectContext(ctx, &rows, query, int64(after), limit); err != nil {
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	out := make([]journal.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Postgres) LastSequence(ctx context.Context) (uint64, error) {
	return s.lastSequence(ctx, s.queryer(ctx))
}

// Get returns a single record by sequence.
func (s *Postgres) Get(ctx context.Context, seq uint64) (journal.Record, error) {
	const query = `
		SELECT sequence, event_id, event_type, aggregate_id, caller, occurred_at, payload
		FROM ledger_events
		WHERE sequence = $1
	`
	var row recordRow
	if err := s.queryer(ctx).GetContext(ctx, &row, query, int64(seq)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return journal.Record{}, sentinel.ErrNotFound
		}
		return journal.Record{}, fmt.Errorf("get ledger event %d: %w", seq, err)
	}
	return row.toRecord()
}

func (s *Postgres) lastSequence(ctx context.Context, q queryer) (uint64, error) {
	var last int64
	if err := q.GetContext(ctx, &last, `SELECT COALESCE(MAX(sequence), 0) FROM ledger_events`); err != nil {
		return 0, fmt.Errorf("read last sequence: %w", err)
	}
	return uint64(last), nil
}

// isUniqueViolation recognises unique-key errors from either registered driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
