package httpserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/ledger"
	"github.com/atlasformation/funnel-engine/internal/models"
	"github.com/atlasformation/funnel-engine/internal/storage"
)

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{
		"status":      "ok",
		"persistence": string(s.service.Tier()),
	})
}

// ---- Events ----

type ingestRequest struct {
	EventType   string         `json:"event_type"`
	InquiryID   string         `json:"inquiry_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	Course      string         `json:"course,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	UTMSource   string         `json:"utm_source,omitempty"`
	UTMMedium   string         `json:"utm_medium,omitempty"`
	UTMCampaign string         `json:"utm_campaign,omitempty"`
}

type ingestResponse struct {
	ID          int64  `json:"id"`
	Persistence string `json:"persistence"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleIngestEvent(w, r)
	case http.MethodGet:
		s.handleQueryEvents(w, r)
	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	e := &models.Event{
		EventType:   strings.TrimSpace(req.EventType),
		InquiryID:   req.InquiryID,
		SessionID:   req.SessionID,
		Course:      req.Course,
		Metadata:    req.Metadata,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
	}
	// Optional timestamp: malformed values default to ingestion time
	// rather than rejecting the event.
	if ts := ledger.ParseDate(req.Timestamp); ts != nil {
		e.Timestamp = *ts
	}

	id, tier, err := s.service.IngestEvent(r.Context(), e, clientIP(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, ingestResponse{ID: id, Persistence: string(tier)})
}

func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := storage.EventFilter{
		EventType: q.Get("event_type"),
		InquiryID: q.Get("inquiry_id"),
		Start:     parseDayStart(q.Get("start")),
		End:       parseDayEnd(q.Get("end")),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			s.writeError(w, &models.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		f.Limit = limit
	}

	events, err := s.service.QueryEvents(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	s.jsonResponse(w, events)
}

// ---- Analytics ----

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := s.service.Summary(r.Context(), filterSpecFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, summary)
}

func (s *Server) handleFunnel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	stats, err := s.service.Funnel(r.Context(), parseDayStart(q.Get("start")), parseDayEnd(q.Get("end")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, stats)
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	metric := q.Get("metric")
	if metric == "" {
		s.writeError(w, &models.ValidationError{Field: "metric", Reason: "is required"})
		return
	}

	result, err := s.service.TimeSeries(r.Context(), metric, parseDayStart(q.Get("start")), parseDayEnd(q.Get("end")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, result)
}

func (s *Server) handleAttribution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rollup, err := s.service.Attribution(r.Context(), filterSpecFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, rollup)
}

func (s *Server) handleLedgerRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := s.service.LedgerRecords(r.Context(), filterSpecFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []models.LedgerRecord{}
	}
	s.jsonResponse(w, records)
}

// ---- Helpers ----

func filterSpecFromQuery(r *http.Request) *models.FilterSpec {
	q := r.URL.Query()
	return &models.FilterSpec{
		Start:         parseDayStart(q.Get("start")),
		End:           parseDayEnd(q.Get("end")),
		Course:        q.Get("course"),
		PaymentMethod: q.Get("payment_method"),
		Language:      q.Get("language"),
		UTMCampaign:   q.Get("utm_campaign"),
		EventType:     q.Get("event_type"),
		InquiryID:     q.Get("inquiry_id"),
	}
}

// parseDayStart expands a YYYY-MM-DD parameter to the start of that day.
func parseDayStart(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}

// parseDayEnd expands a YYYY-MM-DD parameter to 23:59:59 so the end date
// is inclusive.
func parseDayEnd(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	end := t.Add(24*time.Hour - time.Second)
	return &end
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) jsonResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeError maps domain errors onto HTTP statuses: caller mistakes are
// 400, an unreachable ledger is 502, store failures are 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *models.ValidationError
		upstreamErr   *models.UpstreamError
		storageErr    *models.StorageError
	)
	switch {
	case errors.As(err, &validationErr):
		s.errorResponse(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &upstreamErr):
		s.logger.Error("ledger upstream failure", zap.Error(err))
		s.errorResponse(w, "ledger unavailable", http.StatusBadGateway)
	case errors.As(err, &storageErr):
		s.logger.Error("event store failure", zap.Error(err))
		s.errorResponse(w, "storage unavailable", http.StatusInternalServerError)
	default:
		s.logger.Error("internal error", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
	}
}
