package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/table"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock keeps concurrently starting workers from racing on DDL.
	const lockID = 723451987

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	// Enable pgvector extension
	if _, err := conn.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS intents (
			name TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			model TEXT NOT NULL,
			embedding vector NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS scoring_jobs (
			id UUID PRIMARY KEY,
			input_table TEXT NOT NULL,
			output_table TEXT NOT NULL,
			text_column TEXT NOT NULL,
			score_columns TEXT[] NOT NULL,
			partitions INT NOT NULL,
			status TEXT NOT NULL,
			rows INT NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ DEFAULT now(),
			finished_at TIMESTAMPTZ
		);`,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Schema returns the columns of name in table order.
func (s *PostgresStore) Schema(ctx context.Context, name string) ([]table.Column, error) {
	schema, rel := splitQualified(name)
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, rel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []table.Column
	for rows.Next() {
		var c table.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s: %w", name, table.ErrTableNotFound)
	}
	return cols, nil
}

func (s *PostgresStore) Count(ctx context.Context, name string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+quoteQualified(name)).Scan(&n)
	if err != nil {
		return 0, wrapUndefinedTable(name, err)
	}
	return n, nil
}

// ReadRange scans rows in physical order. ctid order is stable as long as the
// input table is not written to during a run. Each call sorts the table by
// ctid and skips offset rows, so a run with p partitions scans the input
// about p times.
func (s *PostgresStore) ReadRange(ctx context.Context, name string, offset, limit int) ([]table.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM `+quoteQualified(name)+` ORDER BY ctid OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, wrapUndefinedTable(name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []table.Row
	for rows.Next() {
		values := make(table.Row, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateDerived(ctx context.Context, src, dst string, extra []table.Column) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `CREATE TABLE `+quoteQualified(dst)+` (LIKE `+quoteQualified(src)+` INCLUDING DEFAULTS)`)
	if err != nil {
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "42P07" {
			return fmt.Errorf("%s: %w", dst, table.ErrTableExists)
		}
		return wrapUndefinedTable(src, err)
	}
	for _, c := range extra {
		typ := c.Type
		if typ == "" {
			typ = "real"
		}
		if _, err := tx.ExecContext(ctx, `ALTER TABLE `+quoteQualified(dst)+` ADD COLUMN `+pq.QuoteIdentifier(c.Name)+` `+typ); err != nil {
			return fmt.Errorf("add column %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// Append copies rows in a single COPY statement, so a partition lands whole
// or not at all.
func (s *PostgresStore) Append(ctx context.Context, name string, rows []table.Row) error {
	if len(rows) == 0 {
		return nil
	}
	cols, err := s.Schema(ctx, name)
	if err != nil {
		return err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	data := make([][]any, len(rows))
	for i, r := range rows {
		if len(r) != len(cols) {
			return fmt.Errorf("row %d has %d values, table %s has %d columns", i, len(r), name, len(cols))
		}
		data[i] = r
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()
		n, err := pgxConn.CopyFrom(ctx, identifier(name), names, pgx.CopyFromRows(data))
		if err != nil {
			return fmt.Errorf("copy into %s: %w", name, err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("copy into %s: wrote %d of %d rows", name, n, len(rows))
		}
		return nil
	})
}

func (s *PostgresStore) Drop(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteQualified(name))
	return err
}

func (s *PostgresStore) SaveIntent(ctx context.Context, intent IntentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intents(name, text, model, embedding, updated_at)
		VALUES($1,$2,$3,$4,now())
		ON CONFLICT (name) DO UPDATE SET text=excluded.text, model=excluded.model,
			embedding=excluded.embedding, updated_at=excluded.updated_at`,
		intent.Name, intent.Text, intent.Model, pgvector.NewVector(intent.Vector))
	return err
}

func (s *PostgresStore) GetIntent(ctx context.Context, name string) (IntentRecord, error) {
	var rec IntentRecord
	var vec pgvector.Vector
	row := s.db.QueryRowContext(ctx, `SELECT name, text, model, embedding, updated_at FROM intents WHERE name=$1`, name)
	if err := row.Scan(&rec.Name, &rec.Text, &rec.Model, &vec, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return IntentRecord{}, ErrIntentNotFound
		}
		return IntentRecord{}, fmt.Errorf("failed to get intent %s: %w", name, err)
	}
	rec.Vector = embeddings.Vector(vec.Slice())
	return rec, nil
}

func (s *PostgresStore) StartJob(ctx context.Context, job JobRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scoring_jobs(id, input_table, output_table, text_column, score_columns, partitions, status)
		VALUES($1,$2,$3,$4,$5,$6,$7)`,
		job.ID, job.InputTable, job.OutputTable, job.TextColumn, pq.Array(job.ScoreColumns), job.Partitions, StatusRunning)
	return err
}

func (s *PostgresStore) FinishJob(ctx context.Context, id uuid.UUID, status JobStatus, rows int, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scoring_jobs SET status=$1, rows=$2, error=$3, finished_at=now() WHERE id=$4`,
		status, rows, errMsg, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (JobRecord, error) {
	var job JobRecord
	var finished sql.NullTime
	row := s.db.QueryRowContext(ctx, `
		SELECT id, input_table, output_table, text_column, score_columns, partitions, status, rows, error, started_at, finished_at
		FROM scoring_jobs WHERE id=$1`, id)
	err := row.Scan(&job.ID, &job.InputTable, &job.OutputTable, &job.TextColumn, pq.Array(&job.ScoreColumns),
		&job.Partitions, &job.Status, &job.Rows, &job.Error, &job.StartedAt, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JobRecord{}, ErrJobNotFound
		}
		return JobRecord{}, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}
	return job, nil
}

// splitQualified splits "schema.table"; unqualified names live in public.
func splitQualified(name string) (string, string) {
	if schema, rel, ok := strings.Cut(name, "."); ok {
		return schema, rel
	}
	return "public", name
}

func quoteQualified(name string) string {
	schema, rel := splitQualified(name)
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(rel)
}

func identifier(name string) pgx.Identifier {
	schema, rel := splitQualified(name)
	return pgx.Identifier{schema, rel}
}

func wrapUndefinedTable(name string, err error) error {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && pgErr.SQLState() == "42P01" {
		return fmt.Errorf("%s: %w", name, table.ErrTableNotFound)
	}
	return err
}

var _ Store = (*PostgresStore)(nil)
