package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process worksheet. It backs local development and tests.
type Memory struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

// NewMemory returns a worksheet holding a copy of rows.
func NewMemory(rows ...[]string) *Memory {
	m := &Memory{}
	for _, r := range rows {
		m.rows = append(m.rows, append([]string(nil), r...))
	}
	return m
}

// Fail makes every following call return err until it is called with nil.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Memory) Read(_ context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot(), nil
}

func (m *Memory) Append(_ context.Context, row []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cells := make([]string, len(row))
	for i, v := range row {
		cells[i] = fmt.Sprint(v)
	}
	m.rows = append(m.rows, cells)
	return nil
}

func (m *Memory) WriteHeader(_ context.Context, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	h := append([]string(nil), header...)
	if len(m.rows) == 0 {
		m.rows = [][]string{h}
		return nil
	}
	m.rows[0] = h
	return nil
}

// Rows returns a copy of the worksheet contents.
func (m *Memory) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Memory) snapshot() [][]string {
	out := make([][]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
