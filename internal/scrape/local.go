package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// LocalConfig controls the fallback fetcher.
type LocalConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Local fetches pages directly with Colly when no scraping API key is
// configured. No JavaScript rendering; text is whatever the raw HTML carries.
type Local struct {
	cfg           LocalConfig
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewLocal builds a Local fetcher.
func NewLocal(cfg LocalConfig, logger *zap.Logger) *Local {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "prospector/1.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	return &Local{cfg: cfg, baseCollector: c, logger: logger}
}

// Scrape executes a single GET and extracts title and body text.
func (l *Local) Scrape(ctx context.Context, targetURL string) (Page, error) {
	collector := l.newCollector()

	var page Page
	page.URL = targetURL
	collector.OnHTML("title", func(e *colly.HTMLElement) {
		if page.Title == "" {
			page.Title = strings.TrimSpace(e.Text)
		}
	})
	collector.OnHTML("body", func(e *colly.HTMLElement) {
		page.Markdown = collapseWhitespace(e.Text)
	})

	if err := l.visit(ctx, collector, targetURL, "scrape"); err != nil {
		return Page{}, err
	}
	l.logger.Debug("fetched page locally",
		zap.String("url", targetURL),
		zap.Int("chars", len(page.Markdown)),
	)
	return page, nil
}

// Discover collects same-host links from a page, up to limit.
func (l *Local) Discover(ctx context.Context, targetURL string, limit int) ([]string, error) {
	base, err := url.Parse(targetURL)
	if err != nil {
		return nil, &RequestError{Op: "discover", URL: targetURL, Err: err}
	}

	collector := l.newCollector()
	seen := map[string]struct{}{}
	var links []string
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(links) >= limit {
			return
		}
		abs := e.Request.AbsoluteURL(e.Attr("href"))
		parsed, err := url.Parse(abs)
		if err != nil || parsed.Hostname() != base.Hostname() {
			return
		}
		parsed.Fragment = ""
		abs = parsed.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	if err := l.visit(ctx, collector, targetURL, "discover"); err != nil {
		return nil, err
	}
	return links, nil
}

func (l *Local) newCollector() *colly.Collector {
	collector := l.baseCollector.Clone()
	collector.UserAgent = l.cfg.UserAgent
	collector.IgnoreRobotsTxt = false
	collector.SetRequestTimeout(l.cfg.Timeout)
	return collector
}

func (l *Local) visit(ctx context.Context, collector *colly.Collector, targetURL, op string) error {
	var fetchErr error
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(targetURL)
	}()

	select {
	case <-ctx.Done():
		return &RequestError{Op: op, URL: targetURL, Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return &RequestError{Op: op, URL: targetURL, Err: err}
		}
		if fetchErr != nil {
			return &RequestError{Op: op, URL: targetURL, Err: fetchErr}
		}
		return nil
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
