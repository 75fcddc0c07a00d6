// Package jobs defines the core types shared across subsystems.
package jobs

import (
	"strconv"
	"time"
)

// DisplayDateLayout is the dd/mm/yyyy form used for every persisted date.
const DisplayDateLayout = "02/01/2006"

// JobsHeader is the required first row of the jobs table.
var JobsHeader = []string{
	"Title",
	"URL",
	"Employer",
	"Location",
	"Days Until Closing",
	"Salary",
	"Closing Date",
	"Posting Date",
	"Scraped Date",
}

// RecipientsHeader is the required first row of the recipients table.
var RecipientsHeader = []string{"Chat ID", "Debug"}

// JobRecord is one validated job posting. URL is the identity; a record is
// never mutated after it has been accepted by the store.
type JobRecord struct {
	Title            string `json:"title"`
	URL              string `json:"url"`
	Employer         string `json:"employer"`
	Location         string `json:"location"`
	DaysUntilClosing int    `json:"days_until_closing"`
	Salary           string `json:"salary"`
	ClosingDate      string `json:"closing_date"`
	PostingDate      string `json:"posting_date"`
	ScrapedDate      string `json:"scraped_date"`
}

// Row renders the record in jobs-table column order.
func (r JobRecord) Row() []string {
	return []string{
		r.Title,
		r.URL,
		r.Employer,
		r.Location,
		strconv.Itoa(r.DaysUntilClosing),
		r.Salary,
		r.ClosingDate,
		r.PostingDate,
		r.ScrapedDate,
	}
}

// RecordFromRow rebuilds a JobRecord from a persisted row. Rows shorter than
// the header are rejected; a malformed day count is kept as zero since the
// field is only meaningful at scrape time anyway.
func RecordFromRow(row []string) (JobRecord, bool) {
	if len(row) < len(JobsHeader) {
		return JobRecord{}, false
	}
	days, _ := strconv.Atoi(row[4])
	return JobRecord{
		Title:            row[0],
		URL:              row[1],
		Employer:         row[2],
		Location:         row[3],
		DaysUntilClosing: days,
		Salary:           row[5],
		ClosingDate:      row[6],
		PostingDate:      row[7],
		ScrapedDate:      row[8],
	}, true
}

// Recipient is one subscribed chat. Debug recipients additionally receive
// operational status messages.
type Recipient struct {
	ChatID int64 `json:"chat_id"`
	Debug  bool  `json:"debug"`
}

// Row renders the recipient in recipients-table column order.
func (r Recipient) Row() []string {
	return []string{strconv.FormatInt(r.ChatID, 10), strconv.FormatBool(r.Debug)}
}

// QuerySpec is an opaque key/value filter forwarded verbatim to the listing
// endpoint (keyword, location, distance, language, ...).
type QuerySpec map[string]string

// Clock returns the current time. Date-derived fields (days until closing,
// expiry checks, fallbacks) go through it so tests can pin the day.
type Clock interface {
	Now() time.Time
}
