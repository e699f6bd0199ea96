package table

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCoversEveryRowOnce(t *testing.T) {
	tests := []struct {
		total, partitions int
		wantSplits        int
	}{
		{10, 3, 3},
		{10, 1, 1},
		{3, 8, 3},
		{7, 0, 1},
		{1000, 16, 16},
	}
	for _, tt := range tests {
		splits := Plan(tt.total, tt.partitions)
		require.Len(t, splits, tt.wantSplits, "total=%d partitions=%d", tt.total, tt.partitions)

		next := 0
		for i, s := range splits {
			assert.Equal(t, i, s.Index)
			assert.Equal(t, next, s.Offset)
			assert.Positive(t, s.Limit)
			next += s.Limit
		}
		assert.Equal(t, tt.total, next)
	}
}

func TestPlanTenRowsThreeParts(t *testing.T) {
	assert.Equal(t, []Split{
		{Index: 0, Offset: 0, Limit: 4},
		{Index: 1, Offset: 4, Limit: 3},
		{Index: 2, Offset: 7, Limit: 3},
	}, Plan(10, 3))
}

func TestPlanEmpty(t *testing.T) {
	assert.Empty(t, Plan(0, 4))
}

func TestColumnIndex(t *testing.T) {
	cols := []Column{{Name: "id"}, {Name: "log_text"}}
	i, err := ColumnIndex(cols, "log_text")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = ColumnIndex(cols, "missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestText(t *testing.T) {
	s, err := Text("a")
	require.NoError(t, err)
	assert.Equal(t, "a", s)

	s, err = Text([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, "b", s)

	_, err = Text(nil)
	assert.Error(t, err)
	_, err = Text(42)
	assert.Error(t, err)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put("bronze_logs", []Column{{Name: "id", Type: "int"}, {Name: "log_text", Type: "text"}},
		[]Row{{1, "a"}, {2, "b"}, {3, "c"}})

	n, err := s.Count(ctx, "bronze_logs")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := s.ReadRange(ctx, "bronze_logs", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []Row{{2, "b"}, {3, "c"}}, rows)

	rows, err = s.ReadRange(ctx, "bronze_logs", 9, 1)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, s.CreateDerived(ctx, "bronze_logs", "silver", []Column{{Name: "score", Type: "real"}}))
	err = s.CreateDerived(ctx, "bronze_logs", "silver", nil)
	assert.ErrorIs(t, err, ErrTableExists)

	cols, err := s.Schema(ctx, "silver")
	require.NoError(t, err)
	assert.Len(t, cols, 3)

	assert.Error(t, s.Append(ctx, "silver", []Row{{1, "a"}}))
	require.NoError(t, s.Append(ctx, "silver", []Row{{1, "a", float32(0.5)}}))

	out, err := s.Rows("silver")
	require.NoError(t, err)
	assert.Equal(t, []Row{{1, "a", float32(0.5)}}, out)

	require.NoError(t, s.Drop(ctx, "silver"))
	_, err = s.Count(ctx, "silver")
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put("t", []Column{{Name: "v"}}, []Row{{"x"}})

	rows, err := s.ReadRange(ctx, "t", 0, 1)
	require.NoError(t, err)
	rows[0][0] = "mutated"

	again, err := s.ReadRange(ctx, "t", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "x", again[0][0])
}
