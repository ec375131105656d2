// Package research assembles a company research report from website pages
// and public LinkedIn data. Each source can fail independently; the report
// carries whatever was gathered plus a warning per failed source.
package research

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/linkedin"
	"github.com/jbialy/prospector/internal/scrape"
)

// SiteScraper fetches pages and discovers same-site links.
type SiteScraper interface {
	Scrape(ctx context.Context, url string) (scrape.Page, error)
	Discover(ctx context.Context, url string, limit int) ([]string, error)
}

// LinkedInClient fetches public company data and posts.
type LinkedInClient interface {
	Company(ctx context.Context, companyURL string) (linkedin.Company, error)
	CompanyPosts(ctx context.Context, companyURL string, limit int) ([]linkedin.Post, error)
}

// Report is the research output for one company.
type Report struct {
	CompanyName string            `json:"company_name"`
	WebsiteURL  string            `json:"website_url,omitempty"`
	LinkedInURL string            `json:"linkedin_url,omitempty"`
	Pages       []scrape.Page     `json:"pages,omitempty"`
	LinkedIn    *linkedin.Company `json:"linkedin,omitempty"`
	RecentPosts []linkedin.Post   `json:"recent_posts,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Options selects which sources to pull and how deep to crawl.
type Options struct {
	CompanyName string
	WebsiteURL  string
	LinkedInURL string
	MaxPages    int
	MaxPosts    int
}

// Researcher runs a research pass over the configured sources.
type Researcher struct {
	scraper  SiteScraper
	linkedIn LinkedInClient
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a Researcher. Either client may be nil; the matching source is
// skipped with a warning when requested.
func New(scraper SiteScraper, linkedIn LinkedInClient, logger *zap.Logger) *Researcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Researcher{
		scraper:  scraper,
		linkedIn: linkedIn,
		logger:   logger,
		now:      time.Now,
	}
}

// Research gathers all requested sources. It returns an error only when the
// context is cancelled or every requested source failed.
func (r *Researcher) Research(ctx context.Context, opts Options) (Report, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.MaxPosts <= 0 {
		opts.MaxPosts = 10
	}

	report := Report{
		CompanyName: opts.CompanyName,
		WebsiteURL:  opts.WebsiteURL,
		LinkedInURL: opts.LinkedInURL,
		GeneratedAt: r.now().UTC(),
	}

	requested := 0
	if opts.WebsiteURL != "" {
		requested++
		r.crawlWebsite(ctx, opts, &report)
	}
	if opts.LinkedInURL != "" {
		requested++
		r.fetchLinkedIn(ctx, opts, &report)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if requested == 0 {
		return report, fmt.Errorf("research needs a website or linkedin url")
	}
	if len(report.Pages) == 0 && report.LinkedIn == nil {
		return report, fmt.Errorf("all research sources failed: %v", report.Warnings)
	}
	return report, nil
}

// crawlWebsite scrapes the landing page, then discovered same-site links up
// to MaxPages. Page failures warn and continue.
func (r *Researcher) crawlWebsite(ctx context.Context, opts Options, report *Report) {
	if r.scraper == nil {
		report.Warnings = append(report.Warnings, "website scraping not configured")
		return
	}

	urls := []string{opts.WebsiteURL}
	if opts.MaxPages > 1 {
		links, err := r.scraper.Discover(ctx, opts.WebsiteURL, opts.MaxPages-1)
		if err != nil {
			r.logger.Warn("link discovery failed", zap.String("url", opts.WebsiteURL), zap.Error(err))
			report.Warnings = append(report.Warnings, fmt.Sprintf("link discovery failed: %v", err))
		}
		for _, link := range links {
			if link != opts.WebsiteURL {
				urls = append(urls, link)
			}
		}
	}

	seen := make(map[string]bool, len(urls))
	for _, pageURL := range urls {
		if len(report.Pages) >= opts.MaxPages {
			break
		}
		if seen[pageURL] {
			continue
		}
		seen[pageURL] = true
		if ctx.Err() != nil {
			return
		}

		page, err := r.scraper.Scrape(ctx, pageURL)
		if err != nil {
			r.logger.Warn("page scrape failed", zap.String("url", pageURL), zap.Error(err))
			report.Warnings = append(report.Warnings, fmt.Sprintf("scrape %s: %v", pageURL, err))
			continue
		}
		report.Pages = append(report.Pages, page)
	}
}

func (r *Researcher) fetchLinkedIn(ctx context.Context, opts Options, report *Report) {
	if r.linkedIn == nil {
		report.Warnings = append(report.Warnings, "linkedin client not configured")
		return
	}

	company, err := r.linkedIn.Company(ctx, opts.LinkedInURL)
	if err != nil {
		r.logger.Warn("linkedin company fetch failed", zap.String("url", opts.LinkedInURL), zap.Error(err))
		report.Warnings = append(report.Warnings, fmt.Sprintf("linkedin company: %v", err))
	} else {
		report.LinkedIn = &company
	}

	posts, err := r.linkedIn.CompanyPosts(ctx, opts.LinkedInURL, opts.MaxPosts)
	if err != nil {
		r.logger.Warn("linkedin posts fetch failed", zap.String("url", opts.LinkedInURL), zap.Error(err))
		report.Warnings = append(report.Warnings, fmt.Sprintf("linkedin posts: %v", err))
		return
	}
	report.RecentPosts = posts
}
