// Package memory provides an in-memory worksheet for development/testing.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Worksheet keeps rows in process memory behind a mutex.
type Worksheet struct {
	mu   sync.RWMutex
	rows [][]string
}

// NewWorksheet constructs an empty Worksheet.
func NewWorksheet() *Worksheet {
	return &Worksheet{}
}

// Rows returns a deep copy of the current table.
func (w *Worksheet) Rows(_ context.Context) ([][]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([][]string, len(w.rows))
	for i, row := range w.rows {
		cp := make([]string, len(row))
		copy(cp, row)
		out[i] = cp
	}
	return out, nil
}

// Append adds rows at the end of the table.
func (w *Worksheet) Append(_ context.Context, rows [][]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range rows {
		cp := make([]string, len(row))
		copy(cp, row)
		w.rows = append(w.rows, cp)
	}
	return nil
}

// SetRow overwrites row n (1-based), growing the table if needed.
func (w *Worksheet) SetRow(_ context.Context, n int, cells []string) error {
	if n < 1 {
		return fmt.Errorf("row index %d out of range", n)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.rows) < n {
		w.rows = append(w.rows, nil)
	}
	cp := make([]string, len(cells))
	copy(cp, cells)
	w.rows[n-1] = cp
	return nil
}

// SetCell overwrites a single cell (1-based row and column).
func (w *Worksheet) SetCell(_ context.Context, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("cell %d,%d out of range", row, col)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if row > len(w.rows) {
		return fmt.Errorf("row %d past end of table", row)
	}
	cells := w.rows[row-1]
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	w.rows[row-1] = cells
	return nil
}
