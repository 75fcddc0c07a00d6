package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
)

// sourceDateLayout is the textual date form used by the listing site,
// e.g. "14 September 2026".
const sourceDateLayout = "2 January 2006"

// fallbackEmployer is used when the employer element is absent.
const fallbackEmployer = "Unknown Employer"

type skipReason string

const (
	skipNone           skipReason = ""
	skipIrrelevant     skipReason = "irrelevant"
	skipExpired        skipReason = "expired"
	skipBadClosingDate skipReason = "bad_closing_date"
	skipMalformed      skipReason = "malformed"
)

// listingResult is the outcome for one listing element: either a record or a
// skip reason. Skips are data, not errors; only skipBadClosingDate and
// skipMalformed warrant a warning.
type listingResult struct {
	record jobs.JobRecord
	skip   skipReason
	detail string
}

// parsePage extracts every listing element from one results page. The length
// of the returned slice is the raw listing count, which drives pagination
// termination.
func parsePage(body []byte, base *url.URL, terms TermSet, now time.Time) ([]listingResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var results []listingResult
	doc.Find("li.search-result").Each(func(_ int, sel *goquery.Selection) {
		results = append(results, parseListing(sel, base, terms, now))
	})
	return results, nil
}

func parseListing(sel *goquery.Selection, base *url.URL, terms TermSet, now time.Time) listingResult {
	titleLink := sel.Find(`a[data-test="search-result-job-title"]`).First()
	title := strings.TrimSpace(titleLink.Text())
	href, hasHref := titleLink.Attr("href")
	if title == "" || !hasHref {
		return listingResult{skip: skipMalformed, detail: "missing title link"}
	}

	if !terms.Matches(title) {
		return listingResult{skip: skipIrrelevant}
	}

	detailURL, err := resolveURL(base, href)
	if err != nil {
		return listingResult{skip: skipMalformed, detail: fmt.Sprintf("bad detail url %q", href)}
	}

	today := dateOnly(now)
	closingText := fieldText(sel, "search-result-closingDate", "Closing date:")
	closing, err := time.Parse(sourceDateLayout, closingText)
	if err != nil {
		return listingResult{
			skip:   skipBadClosingDate,
			detail: fmt.Sprintf("unparseable closing date %q for %q", closingText, title),
		}
	}
	if closing.Before(today) {
		return listingResult{skip: skipExpired}
	}

	postingDate := today
	if posting, err := time.Parse(sourceDateLayout, fieldText(sel, "search-result-publicationDate", "Date posted:")); err == nil {
		postingDate = posting
	}

	return listingResult{record: jobs.JobRecord{
		Title:            title,
		URL:              detailURL,
		Employer:         employerText(sel),
		Location:         strings.TrimSpace(sel.Find("div.location-font-size").First().Text()),
		DaysUntilClosing: int(closing.Sub(today).Hours() / 24),
		Salary:           salaryText(sel),
		ClosingDate:      closing.Format(jobs.DisplayDateLayout),
		PostingDate:      postingDate.Format(jobs.DisplayDateLayout),
		ScrapedDate:      today.Format(jobs.DisplayDateLayout),
	}}
}

// employerText reads only the leading text node of the employer heading; the
// markup nests location spans inside it.
func employerText(sel *goquery.Selection) string {
	h := sel.Find("h3.nhsuk-u-font-weight-bold").First()
	if h.Length() == 0 {
		return fallbackEmployer
	}
	if txt := strings.TrimSpace(h.Contents().First().Text()); txt != "" {
		return txt
	}
	if txt := strings.TrimSpace(h.Text()); txt != "" {
		return txt
	}
	return fallbackEmployer
}

func salaryText(sel *goquery.Selection) string {
	s := fieldText(sel, "search-result-salary", "Salary:")
	// The site renders "£X a year"; the period marker is noise.
	s, _, _ = strings.Cut(s, "a year")
	return strings.TrimSpace(s)
}

func fieldText(sel *goquery.Selection, marker, prefix string) string {
	txt := strings.TrimSpace(sel.Find(fmt.Sprintf("li[data-test=%q]", marker)).First().Text())
	return strings.TrimSpace(strings.TrimPrefix(txt, prefix))
}

func resolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
