// Package sheets implements the tabular.Worksheet interface on top of the
// Google Sheets API.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Worksheet addresses the first sheet of one spreadsheet.
type Worksheet struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// Config identifies the spreadsheet backing a Worksheet.
type Config struct {
	CredentialsFile string
	SpreadsheetID   string
	// SheetName defaults to "Sheet1".
	SheetName string
}

// NewWorksheet builds a Sheets client and verifies the spreadsheet is
// reachable, failing fast on bad configuration.
func NewWorksheet(ctx context.Context, cfg Config) (*Worksheet, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if _, err := svc.Spreadsheets.Get(cfg.SpreadsheetID).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("get spreadsheet %s: %w", cfg.SpreadsheetID, err)
	}
	name := cfg.SheetName
	if name == "" {
		name = "Sheet1"
	}
	return &Worksheet{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetName: name}, nil
}

// Rows reads the whole sheet.
func (w *Worksheet) Rows(ctx context.Context) ([][]string, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, w.sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", w.sheetName, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Append adds rows after the last data row.
func (w *Worksheet) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := w.svc.Spreadsheets.Values.
		Append(w.spreadsheetID, w.sheetName, valueRange(rows)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %d rows to %s: %w", len(rows), w.sheetName, err)
	}
	return nil
}

// SetRow overwrites row n via an A1 range update.
func (w *Worksheet) SetRow(ctx context.Context, n int, cells []string) error {
	if n < 1 {
		return fmt.Errorf("row index %d out of range", n)
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", w.sheetName, n, columnName(len(cells)), n)
	_, err := w.svc.Spreadsheets.Values.
		Update(w.spreadsheetID, rng, valueRange([][]string{cells})).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// SetCell overwrites one cell via an A1 update.
func (w *Worksheet) SetCell(ctx context.Context, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("cell %d,%d out of range", row, col)
	}
	rng := fmt.Sprintf("%s!%s%d", w.sheetName, columnName(col), row)
	_, err := w.svc.Spreadsheets.Values.
		Update(w.spreadsheetID, rng, valueRange([][]string{{value}})).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func valueRange(rows [][]string) *sheets.ValueRange {
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return &sheets.ValueRange{Values: values}
}

// columnName converts a 1-based column index to spreadsheet letters
// (1 -> A, 27 -> AA).
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
