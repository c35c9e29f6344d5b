package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"pharmapulse/internal/dataprocessing"
	"pharmapulse/pkg/contracts/domain"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const insertBatchSize = 500

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// factRecord is the SQL shape of a fact. seq preserves table order.
type factRecord struct {
	Seq int64 `db:"seq"`
	domain.FactRow
}

// SQLStore mirrors the fact table into a SQL database.
type SQLStore struct {
	db     *sqlx.DB
	table  string
	logger *slog.Logger
}

// OpenSQLStore connects with driver ("sqlite" or "postgres") and ensures the
// facts table exists.
func OpenSQLStore(ctx context.Context, driver, dsn, table string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, table: table, logger: logger.With("component", "sql_store", "driver", driver)}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	seq         BIGINT NOT NULL,
	region      TEXT NOT NULL,
	district    TEXT NOT NULL DEFAULT '',
	entity_name TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	source      TEXT NOT NULL,
	team        TEXT NOT NULL DEFAULT '',
	period      TEXT NOT NULL,
	units       DOUBLE PRECISION NOT NULL,
	molecule    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (region, district, entity_name, source, period, team)
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// ReplaceAll swaps the table contents for rows in one transaction.
func (s *SQLStore) ReplaceAll(ctx context.Context, rows []domain.FactRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return dataprocessing.NewPersistenceError(s.table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return dataprocessing.NewPersistenceError(s.table, err)
	}

	records := make([]factRecord, len(rows))
	for i, r := range rows {
		records[i] = factRecord{Seq: int64(i), FactRow: r}
	}

	insert := fmt.Sprintf(`INSERT INTO %s
	(seq, region, district, entity_name, entity_kind, source, team, period, units, molecule)
	VALUES (:seq, :region, :district, :entity_name, :entity_kind, :source, :team, :period, :units, :molecule)`, s.table)
	for _, chunk := range lo.Chunk(records, insertBatchSize) {
		if _, err := tx.NamedExecContext(ctx, insert, chunk); err != nil {
			return dataprocessing.NewPersistenceError(s.table, fmt.Errorf("failed to insert facts: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return dataprocessing.NewPersistenceError(s.table, err)
	}
	s.logger.InfoContext(ctx, "Facts mirrored", slog.Int("rows", len(rows)))
	return nil
}

// Load returns every fact in insertion order.
func (s *SQLStore) Load(ctx context.Context) ([]domain.FactRow, error) {
	var records []factRecord
	query := fmt.Sprintf(`SELECT seq, region, district, entity_name, entity_kind, source, team, period, units, molecule
	FROM %s ORDER BY seq`, s.table)
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	return lo.Map(records, func(r factRecord, _ int) domain.FactRow { return r.FactRow }), nil
}

// Count returns the number of stored facts.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
