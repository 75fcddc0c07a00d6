package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// PageFetcher retrieves one listing page body.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) ([]byte, error)
}

// FetcherConfig controls the HTTP client behavior of the colly fetcher.
type FetcherConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	// Delay between requests to the listing host.
	Delay time.Duration
}

// CollyFetcher implements PageFetcher using the Colly collector.
type CollyFetcher struct {
	base   *colly.Collector
	logger *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based fetcher.
func NewCollyFetcher(cfg FetcherConfig, logger *zap.Logger) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}

	return &CollyFetcher{base: base, logger: logger}, nil
}

// FetchPage retrieves a page body, surfacing transport and HTTP errors.
func (f *CollyFetcher) FetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	collector := f.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", rawURL, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res.err != nil {
			return nil, res.err
		}
		return res.body, nil
	default:
		return nil, errors.New("fetch produced no result")
	}
}

type fetchResult struct {
	body []byte
	err  error
}
