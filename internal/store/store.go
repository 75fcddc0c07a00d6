// Package store provides the rate-limited, header-invariant persistence
// layer over the backing tabular service.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
	"github.com/nhsjobwatch/jobwatch/internal/metrics"
	"github.com/nhsjobwatch/jobwatch/internal/tabular"
)

// Config controls store behavior.
type Config struct {
	// CacheTTL bounds how stale the URL-presence cache may be.
	CacheTTL time.Duration
}

// Store owns exclusive access to the jobs and recipients tables. Crawler and
// dispatcher never touch the backing service directly.
type Store struct {
	jobsTable       tabular.Worksheet
	recipientsTable tabular.Worksheet
	governor        *Governor
	clock           jobs.Clock
	logger          *zap.Logger
	cache           *urlCache
}

// New constructs a Store. The governor is shared process-wide across all
// backing-service calls.
func New(
	jobsTable, recipientsTable tabular.Worksheet,
	governor *Governor,
	clock jobs.Clock,
	cfg Config,
	logger *zap.Logger,
) *Store {
	return &Store{
		jobsTable:       jobsTable,
		recipientsTable: recipientsTable,
		governor:        governor,
		clock:           clock,
		logger:          logger,
		cache:           newURLCache(cfg.CacheTTL),
	}
}

// EnsureSchema rewrites the header row of both tables iff it differs from
// the declared schema. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.ensureHeaderFresh(ctx, s.jobsTable, jobs.JobsHeader); err != nil {
		return err
	}
	return s.ensureHeaderFresh(ctx, s.recipientsTable, jobs.RecipientsHeader)
}

// MergeJobs appends the subset of batch whose URLs are not yet persisted and
// returns exactly that subset. Calling it twice with an overlapping batch is
// idempotent.
func (s *Store) MergeJobs(ctx context.Context, batch []jobs.JobRecord) ([]jobs.JobRecord, error) {
	seen, ok := s.cache.get(s.clock.Now())
	if !ok {
		rows, err := s.readRows(ctx, s.jobsTable, "jobs")
		if err != nil {
			s.cache.clear()
			return nil, err
		}
		if err := s.ensureHeader(ctx, s.jobsTable, jobs.JobsHeader, rows); err != nil {
			return nil, err
		}
		seen = urlSet(rows)
		s.cache.put(seen, s.clock.Now())
	}

	var accepted []jobs.JobRecord
	var newRows [][]string
	for _, rec := range batch {
		if _, dup := seen[rec.URL]; dup {
			continue
		}
		seen[rec.URL] = struct{}{}
		accepted = append(accepted, rec)
		newRows = append(newRows, rec.Row())
	}
	s.logger.Info("merging job batch",
		zap.Int("received", len(batch)),
		zap.Int("new", len(accepted)),
	)
	if len(accepted) == 0 {
		return nil, nil
	}

	if err := s.append(ctx, s.jobsTable, "jobs", newRows); err != nil {
		s.cache.clear()
		return nil, err
	}
	urls := make([]string, len(accepted))
	for i, rec := range accepted {
		urls[i] = rec.URL
	}
	s.cache.add(urls...)
	metrics.AddJobsAccepted(len(accepted))
	return accepted, nil
}

// Recipients lists every registered chat. Malformed rows are skipped with a
// warning rather than failing the listing.
func (s *Store) Recipients(ctx context.Context) ([]jobs.Recipient, error) {
	rows, err := s.readRows(ctx, s.recipientsTable, "recipients")
	if err != nil {
		return nil, err
	}
	if err := s.ensureHeader(ctx, s.recipientsTable, jobs.RecipientsHeader, rows); err != nil {
		return nil, err
	}
	var out []jobs.Recipient
	for i, row := range dataRows(rows) {
		if len(row) < 1 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		chatID, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			s.logger.Warn("skipping malformed recipient row",
				zap.Int("row", i+2),
				zap.String("chat_id", row[0]),
			)
			continue
		}
		debug := len(row) > 1 && strings.EqualFold(strings.TrimSpace(row[1]), "true")
		out = append(out, jobs.Recipient{ChatID: chatID, Debug: debug})
	}
	return out, nil
}

// RegisterRecipient appends an unseen chat id, or overwrites only the debug
// cell of its existing row.
func (s *Store) RegisterRecipient(ctx context.Context, chatID int64, debug bool) error {
	rows, err := s.readRows(ctx, s.recipientsTable, "recipients")
	if err != nil {
		return err
	}
	if err := s.ensureHeader(ctx, s.recipientsTable, jobs.RecipientsHeader, rows); err != nil {
		return err
	}
	id := strconv.FormatInt(chatID, 10)
	for i, row := range dataRows(rows) {
		if len(row) > 0 && strings.TrimSpace(row[0]) == id {
			// Header is row 1, data starts at row 2.
			return s.setCell(ctx, s.recipientsTable, "recipients", i+2, 2, strconv.FormatBool(debug))
		}
	}
	rec := jobs.Recipient{ChatID: chatID, Debug: debug}
	if err := s.append(ctx, s.recipientsTable, "recipients", [][]string{rec.Row()}); err != nil {
		return err
	}
	s.logger.Info("registered recipient", zap.Int64("chat_id", chatID), zap.Bool("debug", debug))
	return nil
}

// MostRecentJob returns the most recently appended record, or false when the
// table holds no data rows.
func (s *Store) MostRecentJob(ctx context.Context) (jobs.JobRecord, bool, error) {
	rows, err := s.readRows(ctx, s.jobsTable, "jobs")
	if err != nil {
		return jobs.JobRecord{}, false, err
	}
	data := dataRows(rows)
	for i := len(data) - 1; i >= 0; i-- {
		if rec, ok := jobs.RecordFromRow(data[i]); ok {
			return rec, true, nil
		}
	}
	return jobs.JobRecord{}, false, nil
}

func (s *Store) ensureHeaderFresh(ctx context.Context, ws tabular.Worksheet, header []string) error {
	rows, err := s.readRows(ctx, ws, "schema")
	if err != nil {
		return err
	}
	return s.ensureHeader(ctx, ws, header, rows)
}

func (s *Store) ensureHeader(ctx context.Context, ws tabular.Worksheet, header []string, rows [][]string) error {
	if len(rows) > 0 && rowsEqual(rows[0], header) {
		return nil
	}
	if err := s.governor.Wait(ctx); err != nil {
		return err
	}
	metrics.IncStoreCall("set_row")
	if err := ws.SetRow(ctx, 1, header); err != nil {
		return fmt.Errorf("rewrite header: %w: %w", jobs.ErrStoreUnavailable, err)
	}
	s.logger.Info("rewrote table header", zap.Strings("header", header))
	return nil
}

func (s *Store) readRows(ctx context.Context, ws tabular.Worksheet, table string) ([][]string, error) {
	if err := s.governor.Wait(ctx); err != nil {
		return nil, err
	}
	metrics.IncStoreCall("read")
	rows, err := ws.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s table: %w: %w", table, jobs.ErrStoreUnavailable, err)
	}
	return rows, nil
}

func (s *Store) append(ctx context.Context, ws tabular.Worksheet, table string, rows [][]string) error {
	if err := s.governor.Wait(ctx); err != nil {
		return err
	}
	metrics.IncStoreCall("append")
	if err := ws.Append(ctx, rows); err != nil {
		return fmt.Errorf("append to %s table: %w: %w", table, jobs.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) setCell(ctx context.Context, ws tabular.Worksheet, table string, row, col int, value string) error {
	if err := s.governor.Wait(ctx); err != nil {
		return err
	}
	metrics.IncStoreCall("set_cell")
	if err := ws.SetCell(ctx, row, col, value); err != nil {
		return fmt.Errorf("update %s table: %w: %w", table, jobs.ErrStoreUnavailable, err)
	}
	return nil
}

func urlSet(rows [][]string) map[string]struct{} {
	set := make(map[string]struct{}, len(rows))
	for _, row := range dataRows(rows) {
		if len(row) > 1 && row[1] != "" {
			set[row[1]] = struct{}{}
		}
	}
	return set
}

func dataRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}

func rowsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
