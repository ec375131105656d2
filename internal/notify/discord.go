// Package notify sends chat notifications through Discord webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/closeio"
)

const embedColorGreen = 0x2ECC71

// Discord posts embed messages to a Discord webhook URL.
type Discord struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
	retryWait  time.Duration
}

// NewDiscord builds a sender for the given webhook URL.
func NewDiscord(webhookURL string, timeout time.Duration, logger *zap.Logger) (*Discord, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("discord webhook url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
		retryWait:  2 * time.Second,
	}, nil
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// SendOpenNotification posts an embed for one email open event.
func (d *Discord) SendOpenNotification(ctx context.Context, ev closeio.OpenEvent) error {
	lead := ev.LeadName
	if lead == "" {
		lead = ev.LeadID
	}
	payload := webhookPayload{
		Embeds: []embed{{
			Title: "📬 Email Opened",
			Color: embedColorGreen,
			Fields: []embedField{
				{Name: "Lead", Value: lead, Inline: true},
				{Name: "Recipient", Value: ev.Recipient, Inline: true},
				{Name: "Subject", Value: ev.Subject},
				{Name: "Total Opens", Value: strconv.Itoa(ev.OpenCount), Inline: true},
			},
			Timestamp: ev.OpenedAt.UTC().Format(time.RFC3339),
		}},
	}
	return d.send(ctx, payload)
}

// SendTest posts a plain test embed to verify the webhook works.
func (d *Discord) SendTest(ctx context.Context) error {
	return d.send(ctx, webhookPayload{
		Embeds: []embed{{
			Title:     "Notifier test",
			Color:     embedColorGreen,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// send posts the payload, retrying once on 429 or 5xx. A Retry-After header
// on the first failure overrides the default wait.
func (d *Discord) send(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	wait := d.retryWait
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			d.logger.Debug("retrying discord webhook", zap.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		status, retryAfter, err := d.post(ctx, body)
		if err == nil {
			return nil
		}
		if status != http.StatusTooManyRequests && (status < 500 || status > 599) && status != 0 {
			return err
		}
		if retryAfter > 0 {
			wait = retryAfter
		}
		if attempt == 1 {
			return err
		}
	}
	return nil
}

func (d *Discord) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return resp.StatusCode, 0, nil
	}

	var retryAfter time.Duration
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, parseErr := strconv.ParseFloat(header, 64); parseErr == nil {
			retryAfter = time.Duration(seconds * float64(time.Second))
		}
	}
	return resp.StatusCode, retryAfter, fmt.Errorf("discord webhook status %d", resp.StatusCode)
}
