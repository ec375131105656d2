// Package scrape fetches web page content, either through the Firecrawl
// scraping API or a local fallback fetcher.
package scrape

import "fmt"

// Page is the text content of a single scraped page.
type Page struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown"`
}

// RequestError is a failed call against a scraping backend, carrying the
// operation and offending URL.
type RequestError struct {
	Op  string
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("scrape %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
