// Package api exposes the HTTP interface for the notifier service.
package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/closeio"
	"github.com/jbialy/prospector/internal/dedup"
	"github.com/jbialy/prospector/internal/relay"
	"github.com/jbialy/prospector/internal/storage/postgres"
	"github.com/jbialy/prospector/internal/telemetry"
)

// Version is the service version reported by the banner endpoint.
const Version = "1.0.0"

// Processor runs open events through the relay pipeline.
type Processor interface {
	Process(ctx context.Context, source string, ev closeio.OpenEvent) (relay.Outcome, error)
}

// AnalyticsStore serves the read-side queries over stored opens.
type AnalyticsStore interface {
	Totals(ctx context.Context) (postgres.Summary, error)
	Recent(ctx context.Context, limit int) ([]postgres.OpenRecord, error)
	ByLead(ctx context.Context, leadID string) ([]postgres.OpenRecord, error)
	ByDate(ctx context.Context, days int) ([]postgres.DateCount, error)
	TopLeads(ctx context.Context, limit int) ([]postgres.LeadCount, error)
	ByTimeOfDay(ctx context.Context) ([]postgres.HourCount, error)
	ByDayOfWeek(ctx context.Context) ([]postgres.DayCount, error)
	EngagementMetrics(ctx context.Context, days int) (postgres.Engagement, error)
	Export(ctx context.Context) ([]postgres.OpenRecord, error)
}

// CacheStats exposes the dedup cache state for the stats endpoint.
type CacheStats interface {
	Stats() dedup.Stats
}

// TestSender fires a test notification.
type TestSender interface {
	SendTest(ctx context.Context) error
}

// Server wires HTTP handlers to the relay, the store, and the notifier.
type Server struct {
	router    chi.Router
	processor Processor
	store     AnalyticsStore
	cache     CacheStats
	sender    TestSender
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	processor Processor,
	store AnalyticsStore,
	cache CacheStats,
	sender TestSender,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		processor: processor,
		store:     store,
		cache:     cache,
		sender:    sender,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/", s.banner)
	r.Get("/health", s.health)
	r.Get("/stats", s.stats)
	r.Post("/webhook/closeio", s.closeWebhook)
	r.Post("/test/notification", s.testNotification)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/summary", s.analyticsSummary)
		r.Get("/recent", s.analyticsRecent)
		r.Get("/by-date", s.analyticsByDate)
		r.Get("/by-lead/{lead_id}", s.analyticsByLead)
		r.Get("/top-leads", s.analyticsTopLeads)
		r.Get("/by-time", s.analyticsByTime)
		r.Get("/by-day", s.analyticsByDay)
		r.Get("/engagement", s.analyticsEngagement)
		r.Get("/export", s.analyticsExport)
	})

	r.Get("/metrics", telemetry.Handler().ServeHTTP)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) banner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "email-open-notifier",
		"status":  "running",
		"version": Version,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// closeWebhook acknowledges well-formed deliveries with 200 regardless of
// downstream outcome, otherwise the CRM retries the same payload in a
// storm. Only an undecodable body gets a 400.
func (s *Server) closeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	events, err := closeio.ParseWebhook(body)
	if errors.Is(err, closeio.ErrNotEmailOpen) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	for _, ev := range events {
		if _, err := s.processor.Process(r.Context(), "webhook", ev); err != nil {
			s.logger.Error("webhook event processing failed",
				zap.String("event_id", ev.EventID),
				zap.Error(err),
			)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "events": len(events)})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.store.Totals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read store totals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cache": s.cache.Stats(),
		"store": totals,
	})
}

func (s *Server) testNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.sender.SendTest(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("test notification failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Totals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) analyticsRecent(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Recent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query recent opens")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opens": emptyIfNil(records)})
}

func (s *Server) analyticsByDate(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.ByDate(r.Context(), queryInt(r, "days", 30))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query opens by date")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": emptyIfNil(counts)})
}

func (s *Server) analyticsByLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "lead_id")
	records, err := s.store.ByLead(r.Context(), leadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query opens by lead")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lead_id": leadID,
		"opens":   emptyIfNil(records),
	})
}

func (s *Server) analyticsTopLeads(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.TopLeads(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query top leads")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": emptyIfNil(counts)})
}

func (s *Server) analyticsByTime(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.ByTimeOfDay(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query opens by hour")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": emptyIfNil(counts)})
}

func (s *Server) analyticsByDay(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.ByDayOfWeek(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query opens by weekday")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": emptyIfNil(counts)})
}

func (s *Server) analyticsEngagement(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.store.EngagementMetrics(r.Context(), queryInt(r, "days", 30))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query engagement")
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

var exportHeader = []string{
	"id", "event_id", "lead_id", "lead_name", "subject",
	"recipient", "open_count", "opened_at", "notified_at",
}

func (s *Server) analyticsExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Export(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export opens")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="email_opens.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		s.logger.Error("csv export write failed", zap.Error(err))
		return
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.EventID,
			rec.LeadID,
			rec.LeadName,
			rec.Subject,
			rec.Recipient,
			strconv.Itoa(rec.OpenCount),
			rec.OpenedAt.UTC().Format(time.RFC3339),
			rec.NotifiedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			s.logger.Error("csv export write failed", zap.Error(err))
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error("csv export flush failed", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// emptyIfNil keeps empty result sets rendering as [] instead of null.
func emptyIfNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
