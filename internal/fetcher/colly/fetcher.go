// Package collyfetcher implements harvest.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/psdocs/doc-harvester/internal/harvest"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements harvest.Fetcher using a Colly collector per request.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	// Politeness delays and robots handling are out of scope for the
	// documentation harvester; every fetch is a single bounded GET.
	c.IgnoreRobotsTxt = true

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Non-2xx responses are reported as
// errors so the walker can treat them as per-page skips.
func (f *Fetcher) Fetch(ctx context.Context, request harvest.FetchRequest) (harvest.FetchResponse, error) {
	var (
		result   harvest.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return harvest.FetchResponse{}, err
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return harvest.FetchResponse{}, fmt.Errorf("fetch %s: status %d", request.URL, result.StatusCode)
	}
	return result, nil
}

func (f *Fetcher) buildCollector(start time.Time, result *harvest.FetchResponse, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	collector.OnResponse(func(r *colly.Response) {
		*result = harvest.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})
	return collector
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("fetch %s: %w", url, *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
