// Package table models the tabular input and output of batch scoring runs.
package table

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrTableNotFound  = errors.New("table not found")
	ErrTableExists    = errors.New("table already exists")
	ErrColumnNotFound = errors.New("column not found")
)

// Column describes one table column. Type is the store's type name.
type Column struct {
	Name string
	Type string
}

// Row holds one value per column, in column order.
type Row []any

// Split is a contiguous range of rows handled by one partition task.
type Split struct {
	Index  int `json:"index"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Store is the contract for the external table store.
type Store interface {
	Schema(ctx context.Context, name string) ([]Column, error)
	Count(ctx context.Context, name string) (int, error)
	// ReadRange returns rows [offset, offset+limit) in the store's stable scan order.
	ReadRange(ctx context.Context, name string, offset, limit int) ([]Row, error)
	// CreateDerived creates dst with src's columns followed by extra.
	CreateDerived(ctx context.Context, src, dst string, extra []Column) error
	// Append adds rows to name atomically: either every row lands or none.
	Append(ctx context.Context, name string, rows []Row) error
	Drop(ctx context.Context, name string) error
}

// ColumnIndex returns the position of name in cols.
func ColumnIndex(cols []Column, name string) (int, error) {
	for i, c := range cols {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: %w", name, ErrColumnNotFound)
}

// Plan splits total rows into at most partitions contiguous, non-empty splits
// that cover every row exactly once. Earlier splits take the remainder.
func Plan(total, partitions int) []Split {
	if total <= 0 {
		return nil
	}
	if partitions <= 0 {
		partitions = 1
	}
	if partitions > total {
		partitions = total
	}
	size, rem := total/partitions, total%partitions
	splits := make([]Split, 0, partitions)
	offset := 0
	for i := 0; i < partitions; i++ {
		limit := size
		if i < rem {
			limit++
		}
		splits = append(splits, Split{Index: i, Offset: offset, Limit: limit})
		offset += limit
	}
	return splits
}

// Text extracts the string value of a text column cell.
func Text(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case nil:
		return "", errors.New("null text value")
	default:
		return "", fmt.Errorf("unsupported text value type %T", v)
	}
}
