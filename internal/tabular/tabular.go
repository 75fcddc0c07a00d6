// Package tabular defines the minimal surface of the backing tabular
// service. Cell-range updates and whole-row appends are the only structural
// operations the system uses.
package tabular

import "context"

// Worksheet is one logical table with a fixed header in row 1. Row and
// column indexes are 1-based, matching spreadsheet addressing.
type Worksheet interface {
	// Rows returns every row of the table, header included.
	Rows(ctx context.Context) ([][]string, error)
	// Append adds rows after the current last row.
	Append(ctx context.Context, rows [][]string) error
	// SetRow overwrites row n, extending the table if n is past the end.
	SetRow(ctx context.Context, n int, cells []string) error
	// SetCell overwrites a single cell.
	SetCell(ctx context.Context, row, col int, value string) error
}
