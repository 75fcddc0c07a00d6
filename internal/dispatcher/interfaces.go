package dispatcher

import (
	"context"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
)

// Fetcher produces a validated record batch from the listing source.
type Fetcher interface {
	Fetch(ctx context.Context, queries []jobs.QuerySpec) ([]jobs.JobRecord, error)
}

// JobStore is the persistence surface the dispatcher drives.
type JobStore interface {
	EnsureSchema(ctx context.Context) error
	MergeJobs(ctx context.Context, batch []jobs.JobRecord) ([]jobs.JobRecord, error)
	Recipients(ctx context.Context) ([]jobs.Recipient, error)
	RegisterRecipient(ctx context.Context, chatID int64, debug bool) error
	MostRecentJob(ctx context.Context) (jobs.JobRecord, bool, error)
}

// Messenger delivers one rich-text message to one chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, html string) error
}
