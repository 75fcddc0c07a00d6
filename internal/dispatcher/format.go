package dispatcher

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
)

const batchHeader = "🚨 New job postings found!\n\n"

// formatBatch renders the full new-jobs digest as a Telegram HTML message.
func formatBatch(records []jobs.JobRecord) string {
	var b strings.Builder
	b.WriteString(batchHeader)
	for _, rec := range records {
		b.WriteString(formatJob(rec))
	}
	return b.String()
}

func formatJob(rec jobs.JobRecord) string {
	return fmt.Sprintf(
		"<b>%s</b>\nEmployer: %s\nLocation: %s\nClosing Date: %s\n<a href='%s'>View Job</a>\n\n",
		html.EscapeString(rec.Title),
		html.EscapeString(rec.Employer),
		html.EscapeString(rec.Location),
		ordinalDate(rec.ClosingDate),
		rec.URL,
	)
}

// ordinalDate turns "03/09/2026" into "3rd September 2026". Unparseable
// input is passed through unchanged.
func ordinalDate(display string) string {
	t, err := time.Parse(jobs.DisplayDateLayout, display)
	if err != nil {
		return display
	}
	return fmt.Sprintf("%d%s %s %d", t.Day(), daySuffix(t.Day()), t.Month(), t.Year())
}

func daySuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
