package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"BriefScanner/internal/domain"
	"BriefScanner/internal/ports"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	archiveTable = "brief_items"
)

var migrations = map[string][]string{
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS brief_items (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			source TEXT NOT NULL,
			position INTEGER NOT NULL,
			item_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			summary TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMPTZ NOT NULL,
			delivered_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_brief_items_run ON brief_items(run_id)`,
	},
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS brief_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			source TEXT NOT NULL,
			position INTEGER NOT NULL,
			item_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			summary TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			published_at DATETIME NOT NULL,
			delivered_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_brief_items_run ON brief_items(run_id)`,
	},
}

// ArchivedItem is one delivered report line.
type ArchivedItem struct {
	RunID       string    `db:"run_id"`
	Source      string    `db:"source"`
	Position    int       `db:"position"`
	ItemID      int64     `db:"item_id"`
	Title       string    `db:"title"`
	Summary     string    `db:"summary"`
	URL         string    `db:"url"`
	PublishedAt time.Time `db:"published_at"`
	DeliveredAt time.Time `db:"delivered_at"`
}

// ArchiveRepository records delivered reports in Postgres or SQLite.
type ArchiveRepository struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.Archive = (*ArchiveRepository)(nil)

// Open connects to the archive database and applies migrations.
func Open(ctx context.Context, driver, dsn string) (*ArchiveRepository, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported archive driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	repo := New(db)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// New wraps an open connection. Placeholders follow the connection's driver.
func New(db *sqlx.DB) *ArchiveRepository {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == DriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &ArchiveRepository{db: db, builder: builder, now: time.Now}
}

// Migrate creates the archive table when absent.
func (r *ArchiveRepository) Migrate(ctx context.Context) error {
	stmts, ok := migrations[r.db.DriverName()]
	if !ok {
		return fmt.Errorf("no migrations for driver %s", r.db.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Record stores every item of a delivered report in one transaction.
func (r *ArchiveRepository) Record(ctx context.Context, runID string, report domain.Report) error {
	if len(report.Items) == 0 {
		return nil
	}

	delivered := r.now().UTC()
	insert := r.builder.Insert(archiveTable).Columns(
		"run_id", "source", "position", "item_id", "title", "summary", "url", "published_at", "delivered_at",
	)
	for i, entry := range report.Items {
		insert = insert.Values(
			runID,
			entry.Item.Source,
			i+1,
			entry.Item.ID,
			entry.Item.Title,
			entry.Summary,
			entry.Item.URL,
			entry.Item.PublishedAt.UTC(),
			delivered,
		)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert archive rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Run returns the archived lines of one run in report order.
func (r *ArchiveRepository) Run(ctx context.Context, runID string) ([]ArchivedItem, error) {
	query, args, err := r.builder.
		Select("run_id", "source", "position", "item_id", "title", "summary", "url", "published_at", "delivered_at").
		From(archiveTable).
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var items []ArchivedItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("select run %s: %w", runID, err)
	}
	return items, nil
}

// Close releases the connection pool.
func (r *ArchiveRepository) Close() error {
	return r.db.Close()
}

func sqliteDSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}
