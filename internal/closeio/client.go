// Package closeio talks to the Close CRM API and decodes its webhook
// payloads into open events.
package closeio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OpenEvent is a single recorded open of a tracked email. An email activity
// with several opens produces one event per open timestamp.
type OpenEvent struct {
	EventID   string    `json:"event_id"`
	LeadID    string    `json:"lead_id"`
	LeadName  string    `json:"lead_name"`
	Subject   string    `json:"subject"`
	Recipient string    `json:"recipient"`
	OpenCount int       `json:"open_count"`
	OpenedAt  time.Time `json:"opened_at"`
}

// Key identifies one open of one email for dedup purposes.
func (e OpenEvent) Key() string {
	return e.EventID + "|" + e.OpenedAt.UTC().Format(time.RFC3339)
}

// APIError is a failed Close API call.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("closeio %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("closeio %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Config controls the Close API client.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Client is a Close CRM API client. Close uses HTTP basic auth with the
// API key as the username and an empty password.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("close api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type emailOpen struct {
	OpenedAt time.Time `json:"opened_at"`
}

type emailActivity struct {
	ID       string      `json:"id"`
	LeadID   string      `json:"lead_id"`
	LeadName string      `json:"lead_name"`
	Subject  string      `json:"subject"`
	To       []string    `json:"to"`
	Opens    []emailOpen `json:"opens"`
}

type activityListResponse struct {
	Data    []emailActivity `json:"data"`
	HasMore bool            `json:"has_more"`
}

// EmailOpens fetches email activities created after since and expands their
// recorded opens into events, one per open timestamp. Events with no opens
// are skipped. Lead names missing from the activity are looked up once per
// lead per call.
func (c *Client) EmailOpens(ctx context.Context, since time.Time) ([]OpenEvent, error) {
	query := url.Values{}
	query.Set("date_created__gt", since.UTC().Format(time.RFC3339))
	query.Set("_order_by", "date_created")

	var parsed activityListResponse
	if err := c.get(ctx, "/activity/email/?"+query.Encode(), "email opens", &parsed); err != nil {
		return nil, err
	}

	leadNames := make(map[string]string)
	var events []OpenEvent
	for _, activity := range parsed.Data {
		if len(activity.Opens) == 0 {
			continue
		}

		leadName := activity.LeadName
		if leadName == "" && activity.LeadID != "" {
			if cached, ok := leadNames[activity.LeadID]; ok {
				leadName = cached
			} else {
				name, err := c.LeadName(ctx, activity.LeadID)
				if err != nil {
					c.logger.Warn("lead name lookup failed",
						zap.String("lead_id", activity.LeadID),
						zap.Error(err),
					)
				} else {
					leadName = name
				}
				leadNames[activity.LeadID] = leadName
			}
		}

		recipient := ""
		if len(activity.To) > 0 {
			recipient = activity.To[0]
		}
		for _, open := range activity.Opens {
			events = append(events, OpenEvent{
				EventID:   activity.ID,
				LeadID:    activity.LeadID,
				LeadName:  leadName,
				Subject:   activity.Subject,
				Recipient: recipient,
				OpenCount: len(activity.Opens),
				OpenedAt:  open.OpenedAt,
			})
		}
	}
	return events, nil
}

// LeadName fetches the display name for a lead.
func (c *Client) LeadName(ctx context.Context, leadID string) (string, error) {
	var parsed struct {
		DisplayName string `json:"display_name"`
		Name        string `json:"name"`
	}
	if err := c.get(ctx, "/lead/"+leadID+"/?_fields=display_name,name", "lead name", &parsed); err != nil {
		return "", err
	}
	if parsed.DisplayName != "" {
		return parsed.DisplayName, nil
	}
	return parsed.Name, nil
}

func (c *Client) get(ctx context.Context, path, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.SetBasicAuth(c.cfg.APIKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
