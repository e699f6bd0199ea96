//go:build integration

package store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-triage/internal/table"
)

func newIntegrationStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := NewPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresDerivedTable(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t)

	suffix := strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	src, dst := "it_logs_"+suffix, "it_logs_scored_"+suffix
	_, err := s.db.ExecContext(ctx, `CREATE TABLE `+quoteQualified(src)+` (id int, message text)`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Drop(ctx, src)
		_ = s.Drop(ctx, dst)
	})
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+quoteQualified(src)+` VALUES (1,'timeout'),(2,'auth failed'),(3,'cold start')`)
	require.NoError(t, err)

	n, err := s.Count(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := s.ReadRange(ctx, src, 1, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, s.CreateDerived(ctx, src, dst, []table.Column{{Name: "similarity", Type: "real"}}))
	assert.ErrorIs(t, s.CreateDerived(ctx, src, dst, nil), table.ErrTableExists)

	out := []table.Row{append(rows[0], float32(0.5)), append(rows[1], float32(0.25))}
	require.NoError(t, s.Append(ctx, dst, out))

	n, err = s.Count(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cols, err := s.Schema(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, "similarity", cols[len(cols)-1].Name)
}

func TestPostgresMissingTable(t *testing.T) {
	s := newIntegrationStore(t)
	_, err := s.Count(context.Background(), "no_such_table_"+strings.ReplaceAll(uuid.NewString(), "-", ""))
	assert.ErrorIs(t, err, table.ErrTableNotFound)
}
