// Package linkedin fetches LinkedIn company and profile data through the
// Bright Data datasets API.
package linkedin

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

// Default Bright Data dataset identifiers for the LinkedIn collectors.
const (
	datasetCompany      = "gd_l1vikfnt1wgvvqz95w"
	datasetProfile      = "gd_l1viktl72bvl7bjuj0"
	datasetCompanyPosts = "gd_lyy3tktm25m4avu764"
)

// Config controls the Bright Data client.
type Config struct {
	APIURL       string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

// Client is a Bright Data datasets API wrapper. A request triggers a
// snapshot, then polls until the snapshot is ready.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// Company is public LinkedIn company data.
type Company struct {
	Name      string `json:"name"`
	Industry  string `json:"industries,omitempty"`
	About     string `json:"about,omitempty"`
	Website   string `json:"website,omitempty"`
	Employees string `json:"company_size,omitempty"`
	Followers int    `json:"followers,omitempty"`
	URL       string `json:"url"`
}

// Post is one public company post.
type Post struct {
	URL      string `json:"url"`
	Text     string `json:"post_text,omitempty"`
	DatePost string `json:"date_posted,omitempty"`
	Likes    int    `json:"num_likes,omitempty"`
}

// Profile is raw person profile data; field sets vary by collector version,
// so it stays a loose map.
type Profile map[string]any

// APIError is a failed Bright Data call carrying the requested URL.
type APIError struct {
	Op  string
	URL string
	Err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// New builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("brightdata api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls == 0 {
		cfg.MaxPolls = 24
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Company fetches public company data for a LinkedIn company URL.
func (c *Client) Company(ctx context.Context, companyURL string) (Company, error) {
	records, err := c.collect(ctx, datasetCompany, companyURL, "company")
	if err != nil {
		return Company{}, err
	}
	if len(records) == 0 {
		return Company{}, &APIError{Op: "company", URL: companyURL, Err: fmt.Errorf("empty snapshot")}
	}
	var company Company
	if err := json.Unmarshal(records[0], &company); err != nil {
		return Company{}, &APIError{Op: "company", URL: companyURL, Err: fmt.Errorf("decode record: %w", err)}
	}
	if company.URL == "" {
		company.URL = companyURL
	}
	return company, nil
}

// CompanyPosts fetches recent public posts for a company URL, up to limit.
func (c *Client) CompanyPosts(ctx context.Context, companyURL string, limit int) ([]Post, error) {
	records, err := c.collect(ctx, datasetCompanyPosts, companyURL, "company posts")
	if err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(records))
	for _, record := range records {
		if limit > 0 && len(posts) >= limit {
			break
		}
		var post Post
		if err := json.Unmarshal(record, &post); err != nil {
			c.logger.Warn("skipping undecodable post record", zap.Error(err))
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// Profile fetches public profile data for a person URL.
func (c *Client) Profile(ctx context.Context, profileURL string) (Profile, error) {
	records, err := c.collect(ctx, datasetProfile, profileURL, "profile")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &APIError{Op: "profile", URL: profileURL, Err: fmt.Errorf("empty snapshot")}
	}
	var profile Profile
	if err := json.Unmarshal(records[0], &profile); err != nil {
		return nil, &APIError{Op: "profile", URL: profileURL, Err: fmt.Errorf("decode record: %w", err)}
	}
	return profile, nil
}

type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// collect triggers a dataset snapshot for one URL and polls until ready.
func (c *Client) collect(ctx context.Context, datasetID, targetURL, op string) ([]json.RawMessage, error) {
	snapshotID, err := c.trigger(ctx, datasetID, targetURL, op)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("snapshot triggered",
		zap.String("dataset", datasetID),
		zap.String("snapshot", snapshotID),
	)

	for poll := 0; poll < c.cfg.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			return nil, &APIError{Op: op, URL: targetURL, Err: ctx.Err()}
		case <-time.After(c.cfg.PollInterval):
		}

		records, ready, err := c.snapshot(ctx, snapshotID, targetURL, op)
		if err != nil {
			return nil, err
		}
		if ready {
			return records, nil
		}
	}
	return nil, &APIError{Op: op, URL: targetURL, Err: fmt.Errorf("snapshot %s not ready after %d polls", snapshotID, c.cfg.MaxPolls)}
}

func (c *Client) trigger(ctx context.Context, datasetID, targetURL, op string) (string, error) {
	body, err := json.Marshal([]map[string]string{{"url": targetURL}})
	if err != nil {
		return "", fmt.Errorf("marshal trigger request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/trigger?dataset_id=%s&format=json", c.cfg.APIURL, datasetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &APIError{Op: op, URL: targetURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Op: op, URL: targetURL, Err: fmt.Errorf("trigger status %d", resp.StatusCode)}
	}
	var parsed triggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &APIError{Op: op, URL: targetURL, Err: fmt.Errorf("decode trigger response: %w", err)}
	}
	if parsed.SnapshotID == "" {
		return "", &APIError{Op: op, URL: targetURL, Err: fmt.Errorf("trigger returned no snapshot id")}
	}
	return parsed.SnapshotID, nil
}

// snapshot fetches a snapshot; 202 means still building.
func (c *Client) snapshot(ctx context.Context, snapshotID, targetURL, op string) ([]json.RawMessage, bool, error) {
	endpoint := fmt.Sprintf("%s/snapshot/%s?format=json", c.cfg.APIURL, snapshotID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, &APIError{Op: op, URL: targetURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	switch resp.StatusCode {
	case http.StatusAccepted:
		return nil, false, nil
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, &APIError{Op: op, URL: targetURL, Err: fmt.Errorf("read snapshot: %w", err)}
		}
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			// Some datasets return a single object instead of a list.
			var single json.RawMessage
			if err2 := json.Unmarshal(data, &single); err2 != nil {
				return nil, false, &APIError{Op: op, URL: targetURL, Err: fmt.Errorf("decode snapshot: %w", err)}
			}
			records = []json.RawMessage{single}
		}
		return records, true, nil
	default:
		return nil, false, &APIError{Op: op, URL: targetURL, Err: fmt.Errorf("snapshot status %d", resp.StatusCode)}
	}
}
