// Package collyfetcher implements book.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/bookharvest/internal/book"
	"github.com/JakeFAU/bookharvest/internal/metrics"
)

// ErrUnexpectedStatus is returned for any response other than 200 OK.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// errAbandoned marks a visit left running after the caller's context ended.
var errAbandoned = errors.New("colly fetch abandoned")

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	// BaseURL is the detail page prefix; the identifier is appended as the last path segment.
	BaseURL string
	// UserAgents is the pool one identity is drawn from per request.
	UserAgents []string
	Timeout    time.Duration
}

// Throttle is consulted before every request.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Fetcher implements book.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	throttle      Throttle
	baseCollector *colly.Collector
	pick          func(n int) int
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil throttle disables the pre-request pause.
func New(cfg Config, throttle Throttle) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	// Clones share the backend, so every request goes out without a jar.
	c.DisableCookies()

	return &Fetcher{
		cfg:           cfg,
		throttle:      throttle,
		baseCollector: c,
		pick:          rand.IntN,
	}
}

// URL returns the detail page address for bookID.
func (f *Fetcher) URL(bookID int64) string {
	return f.cfg.BaseURL + "/" + strconv.FormatInt(bookID, 10)
}

// Fetch pauses, then performs exactly one GET for bookID. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, bookID int64) (book.Document, error) {
	if f.throttle != nil {
		if err := f.throttle.Wait(ctx); err != nil {
			return book.Document{}, fmt.Errorf("throttle: %w", err)
		}
	}

	var (
		result   book.Document
		status   int
		fetchErr error
	)
	userAgent := f.userAgent()
	start := time.Now()
	collector := f.buildCollector(userAgent, start, &result, &status, &fetchErr)

	url := f.URL(bookID)
	err := f.runCollector(ctx, collector, url, &fetchErr)
	if errors.Is(err, errAbandoned) {
		// The visit goroutine may still write to result; leave it alone.
		return book.Document{}, err
	}
	metrics.ObserveFetch(status, len(result.Body), time.Since(start))
	if status != 0 && status != http.StatusOK {
		return book.Document{}, fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus, status, url)
	}
	if err != nil {
		return book.Document{}, err
	}
	result.BookID = bookID
	result.UserAgent = userAgent
	return result, nil
}

func (f *Fetcher) userAgent() string {
	if len(f.cfg.UserAgents) == 0 {
		return ""
	}
	return f.cfg.UserAgents[f.pick(len(f.cfg.UserAgents))]
}

func (f *Fetcher) buildCollector(
	userAgent string,
	start time.Time,
	result *book.Document,
	status *int,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if userAgent != "" {
		collector.UserAgent = userAgent
	}
	f.configureCollectorHooks(collector, start, result, status, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *book.Document,
	status *int,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*result = book.Document{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errAbandoned, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
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
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
}
