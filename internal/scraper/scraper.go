// Package scraper turns the paginated listing endpoint into a validated
// stream of job records.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
	"github.com/nhsjobwatch/jobwatch/internal/metrics"
)

// Config governs the scrape pipeline.
type Config struct {
	// BaseURL is the listing search endpoint.
	BaseURL string
	// MaxPages caps pagination per query as a safety stop; 0 means no cap.
	MaxPages int
}

// Scraper pages through the listing endpoint and parses each page.
type Scraper struct {
	cfg     Config
	base    *url.URL
	fetcher PageFetcher
	terms   TermSet
	clock   jobs.Clock
	logger  *zap.Logger
}

// New constructs a Scraper.
func New(cfg Config, fetcher PageFetcher, terms TermSet, clock jobs.Clock, logger *zap.Logger) (*Scraper, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Scraper{
		cfg:     cfg,
		base:    base,
		fetcher: fetcher,
		terms:   terms,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Fetch runs every query and returns the validated records collected across
// all of them. A transport error terminates only the failing query's
// pagination; records gathered before the failure are kept.
func (s *Scraper) Fetch(ctx context.Context, queries []jobs.QuerySpec) ([]jobs.JobRecord, error) {
	var all []jobs.JobRecord
	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		records := s.fetchQuery(ctx, query)
		all = append(all, records...)
	}
	metrics.AddJobsScraped(len(all))
	s.logger.Info("scrape complete", zap.Int("records", len(all)), zap.Int("queries", len(queries)))
	return all, nil
}

func (s *Scraper) fetchQuery(ctx context.Context, query jobs.QuerySpec) []jobs.JobRecord {
	var collected []jobs.JobRecord
	for page := 1; s.cfg.MaxPages == 0 || page <= s.cfg.MaxPages; page++ {
		pageURL := s.pageURL(query, page)
		body, err := s.fetcher.FetchPage(ctx, pageURL)
		if err != nil {
			s.logger.Warn("page fetch failed, keeping records collected so far",
				zap.String("url", pageURL),
				zap.Int("page", page),
				zap.Error(err),
			)
			return collected
		}
		metrics.IncPageFetched()

		results, err := parsePage(body, s.base, s.terms, s.clock.Now())
		if err != nil {
			s.logger.Warn("page parse failed", zap.String("url", pageURL), zap.Error(err))
			return collected
		}
		if len(results) == 0 {
			break
		}
		collected = append(collected, s.collect(results)...)
	}
	return collected
}

// collect separates records from skips, logging only the skips that carry a
// warning.
func (s *Scraper) collect(results []listingResult) []jobs.JobRecord {
	var records []jobs.JobRecord
	for _, res := range results {
		if res.skip == skipNone {
			records = append(records, res.record)
			continue
		}
		metrics.IncListingSkipped(string(res.skip))
		if res.detail != "" {
			s.logger.Warn("skipping listing",
				zap.String("reason", string(res.skip)),
				zap.String("detail", res.detail),
			)
		}
	}
	return records
}

func (s *Scraper) pageURL(query jobs.QuerySpec, page int) string {
	params := url.Values{}
	for k, v := range query {
		params.Set(k, v)
	}
	params.Set("page", strconv.Itoa(page))
	u := *s.base
	u.RawQuery = params.Encode()
	return u.String()
}
