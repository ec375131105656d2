package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FirecrawlConfig controls the scraping API client.
type FirecrawlConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Firecrawl calls the hosted scraping API. It renders pages server-side and
// returns markdown.
type Firecrawl struct {
	apiURL    string
	apiKey    string
	client    *http.Client
	logger    *zap.Logger
	retryWait time.Duration
}

// NewFirecrawl builds a Firecrawl client.
func NewFirecrawl(cfg FirecrawlConfig, logger *zap.Logger) (*Firecrawl, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("firecrawl api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Firecrawl{
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		apiKey:    cfg.APIKey,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		retryWait: time.Second,
	}, nil
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

// Scrape fetches one URL as markdown.
func (f *Firecrawl) Scrape(ctx context.Context, targetURL string) (Page, error) {
	body, err := json.Marshal(scrapeRequest{URL: targetURL, Formats: []string{"markdown"}})
	if err != nil {
		return Page{}, fmt.Errorf("marshal scrape request: %w", err)
	}

	respBody, err := f.post(ctx, f.apiURL+"/scrape", body, targetURL)
	if err != nil {
		return Page{}, err
	}

	var parsed scrapeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Page{}, &RequestError{Op: "scrape", URL: targetURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !parsed.Success {
		return Page{}, &RequestError{Op: "scrape", URL: targetURL, Err: fmt.Errorf("api error: %s", parsed.Error)}
	}

	return Page{
		URL:      targetURL,
		Title:    parsed.Data.Metadata.Title,
		Markdown: parsed.Data.Markdown,
	}, nil
}

type mapRequest struct {
	URL   string `json:"url"`
	Limit int    `json:"limit"`
}

type mapResponse struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
	Error   string   `json:"error"`
}

// Discover lists same-site links of a URL, up to limit, using the API's
// site-map endpoint.
func (f *Firecrawl) Discover(ctx context.Context, targetURL string, limit int) ([]string, error) {
	body, err := json.Marshal(mapRequest{URL: targetURL, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal map request: %w", err)
	}

	respBody, err := f.post(ctx, f.apiURL+"/map", body, targetURL)
	if err != nil {
		return nil, err
	}

	var parsed mapResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &RequestError{Op: "map", URL: targetURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !parsed.Success {
		return nil, &RequestError{Op: "map", URL: targetURL, Err: fmt.Errorf("api error: %s", parsed.Error)}
	}
	if len(parsed.Links) > limit {
		parsed.Links = parsed.Links[:limit]
	}
	return parsed.Links, nil
}

// post issues the request with a single retry on transient failures.
func (f *Firecrawl) post(ctx context.Context, endpoint string, body []byte, targetURL string) ([]byte, error) {
	op := strings.TrimPrefix(endpoint[strings.LastIndex(endpoint, "/"):], "/")
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			f.logger.Warn("retrying scrape request",
				zap.String("url", targetURL),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, &RequestError{Op: op, URL: targetURL, Err: ctx.Err()}
			case <-time.After(f.retryWait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+f.apiKey)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		closeErr := resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}
		if closeErr != nil {
			f.logger.Warn("close response body", zap.Error(closeErr))
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &RequestError{
				Op:  op,
				URL: targetURL,
				Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200)),
			}
		}
		return respBody, nil
	}
	return nil, &RequestError{Op: op, URL: targetURL, Err: lastErr}
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
