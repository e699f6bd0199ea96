package table

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	columns []Column
	rows    []Row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memTable)}
}

// Put creates or replaces a table.
func (s *MemoryStore) Put(name string, columns []Column, rows []Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = &memTable{columns: slices.Clone(columns), rows: cloneRows(rows)}
}

// Rows returns a copy of every row in name.
func (s *MemoryStore) Rows(name string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	return cloneRows(t.rows), nil
}

func (s *MemoryStore) Schema(_ context.Context, name string) ([]Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	return slices.Clone(t.columns), nil
}

func (s *MemoryStore) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	return len(t.rows), nil
}

func (s *MemoryStore) ReadRange(_ context.Context, name string, offset, limit int) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	if offset < 0 || offset >= len(t.rows) || limit <= 0 {
		return []Row{}, nil
	}
	end := min(offset+limit, len(t.rows))
	return cloneRows(t.rows[offset:end]), nil
}

func (s *MemoryStore) CreateDerived(_ context.Context, src, dst string, extra []Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[src]
	if !ok {
		return fmt.Errorf("%s: %w", src, ErrTableNotFound)
	}
	if _, exists := s.tables[dst]; exists {
		return fmt.Errorf("%s: %w", dst, ErrTableExists)
	}
	cols := append(slices.Clone(t.columns), extra...)
	s.tables[dst] = &memTable{columns: cols}
	return nil
}

func (s *MemoryStore) Append(_ context.Context, name string, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrTableNotFound)
	}
	for i, r := range rows {
		if len(r) != len(t.columns) {
			return fmt.Errorf("row %d has %d values, table %s has %d columns", i, len(r), name, len(t.columns))
		}
	}
	t.rows = append(t.rows, cloneRows(rows)...)
	return nil
}

func (s *MemoryStore) Drop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
	return nil
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
