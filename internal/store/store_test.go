package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
	"github.com/nhsjobwatch/jobwatch/internal/tabular"
	"github.com/nhsjobwatch/jobwatch/internal/tabular/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// failingWorksheet wraps a real worksheet and fails selected operations.
type failingWorksheet struct {
	tabular.Worksheet
	failRows   bool
	failAppend bool
}

func (w *failingWorksheet) Rows(ctx context.Context) ([][]string, error) {
	if w.failRows {
		return nil, errors.New("backend down")
	}
	return w.Worksheet.Rows(ctx)
}

func (w *failingWorksheet) Append(ctx context.Context, rows [][]string) error {
	if w.failAppend {
		return errors.New("backend down")
	}
	return w.Worksheet.Append(ctx, rows)
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *memory.Worksheet, *memory.Worksheet, *fakeClock) {
	t.Helper()
	jobsWS := memory.NewWorksheet()
	recipientsWS := memory.NewWorksheet()
	clock := &fakeClock{now: time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)}
	s := New(jobsWS, recipientsWS, NewGovernor(10000, time.Second), clock,
		Config{CacheTTL: ttl}, zap.NewNop())
	return s, jobsWS, recipientsWS, clock
}

func record(url string) jobs.JobRecord {
	return jobs.JobRecord{
		Title:       "Assistant Psychologist",
		URL:         url,
		Employer:    "Trust",
		Location:    "London",
		Salary:      "£28,407",
		ClosingDate: "14/09/2026",
		PostingDate: "20/08/2026",
		ScrapedDate: "28/08/2026",
	}
}

func TestEnsureSchemaWritesHeaders(t *testing.T) {
	s, jobsWS, recipientsWS, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.EnsureSchema(ctx))

	rows, err := jobsWS.Rows(ctx)
	require.NoError(t, err)
	require.Equal(t, [][]string{jobs.JobsHeader}, rows)

	rows, err = recipientsWS.Rows(ctx)
	require.NoError(t, err)
	require.Equal(t, [][]string{jobs.RecipientsHeader}, rows)
}

func TestEnsureSchemaRepairsCorruptHeader(t *testing.T) {
	s, jobsWS, _, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, jobsWS.SetRow(ctx, 1, []string{"wrong", "header"}))
	require.NoError(t, s.EnsureSchema(ctx))

	rows, err := jobsWS.Rows(ctx)
	require.NoError(t, err)
	require.Equal(t, jobs.JobsHeader, rows[0])
}

func TestMergeJobsIsIdempotent(t *testing.T) {
	s, jobsWS, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	batch := []jobs.JobRecord{record("https://example.org/job/1"), record("https://example.org/job/2")}

	accepted, err := s.MergeJobs(ctx, batch)
	require.NoError(t, err)
	require.Len(t, accepted, 2)

	accepted, err = s.MergeJobs(ctx, batch)
	require.NoError(t, err)
	require.Empty(t, accepted)

	rows, err := jobsWS.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus exactly one row per distinct URL")
}

func TestMergeJobsDedupesByURLOnly(t *testing.T) {
	s, _, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	first := record("https://example.org/job/1")
	_, err := s.MergeJobs(ctx, []jobs.JobRecord{first})
	require.NoError(t, err)

	// Same URL, different title: still a duplicate.
	changed := first
	changed.Title = "Senior Psychologist"
	accepted, err := s.MergeJobs(ctx, []jobs.JobRecord{changed})
	require.NoError(t, err)
	require.Empty(t, accepted)
}

func TestMergeJobsDedupesWithinBatch(t *testing.T) {
	s, jobsWS, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	dup := record("https://example.org/job/1")
	accepted, err := s.MergeJobs(ctx, []jobs.JobRecord{dup, dup, record("https://example.org/job/2")})
	require.NoError(t, err)
	require.Len(t, accepted, 2)

	rows, err := jobsWS.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestMergeJobsRewritesMissingHeader(t *testing.T) {
	s, jobsWS, _, _ := newTestStore(t, 0)
	ctx := context.Background()

	_, err := s.MergeJobs(ctx, []jobs.JobRecord{record("https://example.org/job/1")})
	require.NoError(t, err)

	rows, err := jobsWS.Rows(ctx)
	require.NoError(t, err)
	require.Equal(t, jobs.JobsHeader, rows[0])
}

func TestMergeJobsUsesCacheWithinTTL(t *testing.T) {
	s, jobsWS, _, clock := newTestStore(t, 5*time.Minute)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	_, err := s.MergeJobs(ctx, []jobs.JobRecord{record("https://example.org/job/1")})
	require.NoError(t, err)

	// Second row written behind the store's back. With a warm cache the
	// duplicate check must not see it, so the same URL is rejected from the
	// cache and a new one accepted without a read.
	require.NoError(t, jobsWS.Append(ctx, [][]string{record("https://example.org/job/external").Row()}))

	accepted, err := s.MergeJobs(ctx, []jobs.JobRecord{
		record("https://example.org/job/1"),
		record("https://example.org/job/external"),
	})
	require.NoError(t, err)
	require.Len(t, accepted, 1, "cached view does not include the external row")

	clock.advance(6 * time.Minute)
	accepted, err = s.MergeJobs(ctx, []jobs.JobRecord{record("https://example.org/job/external")})
	require.NoError(t, err)
	require.Empty(t, accepted, "expired cache forces a fresh read that sees the external row")
}

func TestMergeJobsClearsCacheOnAppendFailure(t *testing.T) {
	inner := memory.NewWorksheet()
	failing := &failingWorksheet{Worksheet: inner}
	clock := &fakeClock{now: time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)}
	s := New(failing, memory.NewWorksheet(), NewGovernor(10000, time.Second), clock,
		Config{CacheTTL: time.Hour}, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	failing.failAppend = true
	_, err := s.MergeJobs(ctx, []jobs.JobRecord{record("https://example.org/job/1")})
	require.ErrorIs(t, err, jobs.ErrStoreUnavailable)

	// After the failure the next merge must re-read instead of trusting a
	// cache that may disagree with the backend.
	failing.failAppend = false
	accepted, err := s.MergeJobs(ctx, []jobs.JobRecord{record("https://example.org/job/1")})
	require.NoError(t, err)
	require.Len(t, accepted, 1)
}

func TestMergeJobsReadFailure(t *testing.T) {
	failing := &failingWorksheet{Worksheet: memory.NewWorksheet(), failRows: true}
	clock := &fakeClock{now: time.Now()}
	s := New(failing, memory.NewWorksheet(), NewGovernor(10000, time.Second), clock,
		Config{}, zap.NewNop())

	_, err := s.MergeJobs(context.Background(), []jobs.JobRecord{record("https://example.org/job/1")})
	require.ErrorIs(t, err, jobs.ErrStoreUnavailable)
}

func TestRecipientsSkipsMalformedRows(t *testing.T) {
	s, _, recipientsWS, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, recipientsWS.Append(ctx, [][]string{
		{"12345", "false"},
		{"not-a-number", "false"},
		{"", "true"},
		{"67890", "TRUE"},
		{"11111"},
	}))

	recipients, err := s.Recipients(ctx)
	require.NoError(t, err)
	require.Equal(t, []jobs.Recipient{
		{ChatID: 12345},
		{ChatID: 67890, Debug: true},
		{ChatID: 11111},
	}, recipients)
}

func TestRegisterRecipientAppendsThenUpdates(t *testing.T) {
	s, _, recipientsWS, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	require.NoError(t, s.RegisterRecipient(ctx, 12345, false))
	require.NoError(t, s.RegisterRecipient(ctx, 67890, true))

	rows, err := recipientsWS.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Re-registering flips only the debug cell; no second row appears.
	require.NoError(t, s.RegisterRecipient(ctx, 12345, true))
	rows, err = recipientsWS.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"12345", "true"}, rows[1])

	recipients, err := s.Recipients(ctx)
	require.NoError(t, err)
	require.Equal(t, []jobs.Recipient{
		{ChatID: 12345, Debug: true},
		{ChatID: 67890, Debug: true},
	}, recipients)
}

func TestMostRecentJob(t *testing.T) {
	s, jobsWS, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	_, ok, err := s.MostRecentJob(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.MergeJobs(ctx, []jobs.JobRecord{
		record("https://example.org/job/1"),
		record("https://example.org/job/2"),
	})
	require.NoError(t, err)

	rec, ok, err := s.MostRecentJob(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://example.org/job/2", rec.URL)

	// Trailing junk row is skipped in favour of the last parseable one.
	require.NoError(t, jobsWS.Append(ctx, [][]string{{"short", "row"}}))
	rec, ok, err = s.MostRecentJob(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://example.org/job/2", rec.URL)
}
