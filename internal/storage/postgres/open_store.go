// Package postgres provides Postgres-backed persistence for email open
// events.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jbialy/prospector/internal/closeio"
)

const openSchema = `
CREATE TABLE IF NOT EXISTS email_opens (
	id BIGSERIAL PRIMARY KEY,
	event_id TEXT NOT NULL,
	lead_id TEXT NOT NULL DEFAULT '',
	lead_name TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	recipient TEXT NOT NULL DEFAULT '',
	open_count INTEGER NOT NULL DEFAULT 1,
	opened_at TIMESTAMPTZ NOT NULL,
	notified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (event_id, opened_at)
)`

// OpenStoreConfig controls the Postgres connection pool.
type OpenStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// OpenStore persists email open events and serves the analytics queries.
type OpenStore struct {
	pool pgxPool
}

// OpenRecord is a stored open event row.
type OpenRecord struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	LeadID     string    `json:"lead_id"`
	LeadName   string    `json:"lead_name"`
	Subject    string    `json:"subject"`
	Recipient  string    `json:"recipient"`
	OpenCount  int       `json:"open_count"`
	OpenedAt   time.Time `json:"opened_at"`
	NotifiedAt time.Time `json:"notified_at"`
}

// Summary is the store-wide open totals.
type Summary struct {
	TotalOpens   int `json:"total_opens"`
	UniqueEmails int `json:"unique_emails"`
	UniqueLeads  int `json:"unique_leads"`
}

// DateCount is opens aggregated over one calendar day.
type DateCount struct {
	Date        string `json:"date"`
	OpenCount   int    `json:"opens_count"`
	UniqueLeads int    `json:"unique_leads"`
}

// LeadCount is opens aggregated per lead.
type LeadCount struct {
	LeadID     string `json:"lead_id"`
	LeadName   string `json:"lead_name"`
	TotalOpens int    `json:"total_opens"`
}

// HourCount is opens aggregated by hour of day (0-23).
type HourCount struct {
	Hour        int `json:"hour"`
	OpenCount   int `json:"opens_count"`
	UniqueLeads int `json:"unique_leads"`
}

// DayCount is opens aggregated by day of week (0 = Sunday).
type DayCount struct {
	DayOfWeek   int    `json:"day_of_week"`
	DayName     string `json:"day_name"`
	OpenCount   int    `json:"opens_count"`
	UniqueLeads int    `json:"unique_leads"`
}

// Engagement summarizes open behavior over a trailing window.
type Engagement struct {
	PeriodDays       int     `json:"period_days"`
	TotalOpens       int     `json:"total_opens"`
	UniqueEmails     int     `json:"unique_emails"`
	UniqueLeads      int     `json:"unique_leads"`
	AvgOpensPerEmail float64 `json:"avg_opens_per_email"`
	MaxOpensPerEmail int     `json:"max_opens_per_email"`
}

// NewOpenStore connects a pgx pool and returns the store.
func NewOpenStore(ctx context.Context, cfg OpenStoreConfig) (*OpenStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &OpenStore{pool: pool}, nil
}

// NewOpenStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewOpenStoreWithPool(pool pgxPool) (*OpenStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &OpenStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *OpenStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the email_opens table if it does not exist.
func (s *OpenStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, openSchema); err != nil {
		return fmt.Errorf("create email_opens table: %w", err)
	}
	return nil
}

// InsertOpen records one open event. It returns false when the
// (event_id, opened_at) pair is already stored.
func (s *OpenStore) InsertOpen(ctx context.Context, ev closeio.OpenEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO email_opens (event_id, lead_id, lead_name, subject, recipient, open_count, opened_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (event_id, opened_at) DO NOTHING`,
		ev.EventID, ev.LeadID, ev.LeadName, ev.Subject, ev.Recipient, ev.OpenCount, ev.OpenedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert open event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Totals returns the store-wide summary.
func (s *OpenStore) Totals(ctx context.Context) (Summary, error) {
	var summary Summary
	err := s.pool.QueryRow(ctx, `
SELECT COUNT(*), COUNT(DISTINCT event_id), COUNT(DISTINCT lead_id)
FROM email_opens`).Scan(&summary.TotalOpens, &summary.UniqueEmails, &summary.UniqueLeads)
	if err != nil {
		return Summary{}, fmt.Errorf("query summary: %w", err)
	}
	return summary, nil
}

// Recent returns the most recent opens, newest first.
func (s *OpenStore) Recent(ctx context.Context, limit int) ([]OpenRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, event_id, lead_id, lead_name, subject, recipient, open_count, opened_at, notified_at
FROM email_opens
ORDER BY opened_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent opens: %w", err)
	}
	return scanRecords(rows)
}

// ByLead returns every stored open for one lead, newest first.
func (s *OpenStore) ByLead(ctx context.Context, leadID string) ([]OpenRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, event_id, lead_id, lead_name, subject, recipient, open_count, opened_at, notified_at
FROM email_opens
WHERE lead_id = $1
ORDER BY opened_at DESC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("query opens by lead: %w", err)
	}
	return scanRecords(rows)
}

// ByDate aggregates opens per calendar day over the trailing window.
func (s *OpenStore) ByDate(ctx context.Context, days int) ([]DateCount, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := s.pool.Query(ctx, `
SELECT to_char(opened_at::date, 'YYYY-MM-DD'), COUNT(*), COUNT(DISTINCT lead_id)
FROM email_opens
WHERE opened_at >= now() - ($1 || ' days')::interval
GROUP BY opened_at::date
ORDER BY opened_at::date`, days)
	if err != nil {
		return nil, fmt.Errorf("query opens by date: %w", err)
	}
	defer rows.Close()

	var counts []DateCount
	for rows.Next() {
		var c DateCount
		if err := rows.Scan(&c.Date, &c.OpenCount, &c.UniqueLeads); err != nil {
			return nil, fmt.Errorf("scan date count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TopLeads returns the leads with the most recorded opens.
func (s *OpenStore) TopLeads(ctx context.Context, limit int) ([]LeadCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
SELECT lead_id, MAX(lead_name), COUNT(*)
FROM email_opens
GROUP BY lead_id
ORDER BY COUNT(*) DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top leads: %w", err)
	}
	defer rows.Close()

	var counts []LeadCount
	for rows.Next() {
		var c LeadCount
		if err := rows.Scan(&c.LeadID, &c.LeadName, &c.TotalOpens); err != nil {
			return nil, fmt.Errorf("scan lead count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ByTimeOfDay aggregates opens per hour of day.
func (s *OpenStore) ByTimeOfDay(ctx context.Context) ([]HourCount, error) {
	rows, err := s.pool.Query(ctx, `
SELECT EXTRACT(HOUR FROM opened_at)::int, COUNT(*), COUNT(DISTINCT lead_id)
FROM email_opens
GROUP BY 1
ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query opens by hour: %w", err)
	}
	defer rows.Close()

	var counts []HourCount
	for rows.Next() {
		var c HourCount
		if err := rows.Scan(&c.Hour, &c.OpenCount, &c.UniqueLeads); err != nil {
			return nil, fmt.Errorf("scan hour count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ByDayOfWeek aggregates opens per weekday, Sunday first.
func (s *OpenStore) ByDayOfWeek(ctx context.Context) ([]DayCount, error) {
	rows, err := s.pool.Query(ctx, `
SELECT EXTRACT(DOW FROM opened_at)::int, COUNT(*), COUNT(DISTINCT lead_id)
FROM email_opens
GROUP BY 1
ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query opens by weekday: %w", err)
	}
	defer rows.Close()

	var counts []DayCount
	for rows.Next() {
		var c DayCount
		if err := rows.Scan(&c.DayOfWeek, &c.OpenCount, &c.UniqueLeads); err != nil {
			return nil, fmt.Errorf("scan weekday count: %w", err)
		}
		if c.DayOfWeek >= 0 && c.DayOfWeek < len(dayNames) {
			c.DayName = dayNames[c.DayOfWeek]
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// EngagementMetrics summarizes open behavior over the trailing window in
// days.
func (s *OpenStore) EngagementMetrics(ctx context.Context, days int) (Engagement, error) {
	if days <= 0 {
		days = 30
	}
	metrics := Engagement{PeriodDays: days}
	err := s.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(DISTINCT event_id),
	COUNT(DISTINCT lead_id),
	COALESCE(MAX(per_email.opens), 0)
FROM email_opens
LEFT JOIN LATERAL (
	SELECT COUNT(*) AS opens
	FROM email_opens inner_opens
	WHERE inner_opens.event_id = email_opens.event_id
	  AND inner_opens.opened_at >= now() - ($1 || ' days')::interval
) per_email ON true
WHERE opened_at >= now() - ($1 || ' days')::interval`, days).Scan(
		&metrics.TotalOpens,
		&metrics.UniqueEmails,
		&metrics.UniqueLeads,
		&metrics.MaxOpensPerEmail,
	)
	if err != nil {
		return Engagement{}, fmt.Errorf("query engagement metrics: %w", err)
	}
	if metrics.UniqueEmails > 0 {
		metrics.AvgOpensPerEmail = float64(metrics.TotalOpens) / float64(metrics.UniqueEmails)
	}
	return metrics, nil
}

// Export returns every stored open, oldest first.
func (s *OpenStore) Export(ctx context.Context) ([]OpenRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, event_id, lead_id, lead_name, subject, recipient, open_count, opened_at, notified_at
FROM email_opens
ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("query export: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]OpenRecord, error) {
	defer rows.Close()

	var records []OpenRecord
	for rows.Next() {
		var rec OpenRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.LeadID,
			&rec.LeadName,
			&rec.Subject,
			&rec.Recipient,
			&rec.OpenCount,
			&rec.OpenedAt,
			&rec.NotifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan open record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
