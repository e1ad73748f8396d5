package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/database"
	"github.com/atlasformation/funnel-engine/internal/models"
)

// PostgresEventStore is the durable tier: a networked PostgreSQL store
// shared by all instances. Appends are single-row inserts with
// database-assigned ids, so concurrent writers need no extra locking.
type PostgresEventStore struct {
	db     *database.PostgresDB
	logger *zap.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS events (
	id           BIGSERIAL PRIMARY KEY,
	event_type   TEXT NOT NULL,
	inquiry_id   TEXT,
	session_id   TEXT,
	course       TEXT,
	timestamp    TIMESTAMPTZ NOT NULL,
	metadata     JSONB,
	utm_source   TEXT,
	utm_medium   TEXT,
	utm_campaign TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_events_inquiry_id ON events (inquiry_id);
CREATE INDEX IF NOT EXISTS idx_events_event_type ON events (event_type);`

// NewPostgresEventStore creates the store and runs idempotent schema
// creation. The schema runs on every open, not just the first, because a
// stateless deployment may re-open the store per process.
func NewPostgresEventStore(ctx context.Context, db *database.PostgresDB, logger *zap.Logger) (*PostgresEventStore, error) {
	if _, err := db.Pool.Exec(ctx, postgresSchema); err != nil {
		return nil, &models.StorageError{Op: "schema", Err: err}
	}
	return &PostgresEventStore{db: db, logger: logger}, nil
}

// Append stores one event and returns its database-assigned id.
func (s *PostgresEventStore) Append(ctx context.Context, e *models.Event) (int64, error) {
	metadata, err := marshalMetadata(e.Metadata)
	if err != nil {
		return 0, &models.StorageError{Op: "append", Err: err}
	}

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO events (event_type, inquiry_id, session_id, course, timestamp, metadata, utm_source, utm_medium, utm_campaign)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, e.EventType, nullString(e.InquiryID), nullString(e.SessionID), nullString(e.Course),
		e.Timestamp, metadata, nullString(e.UTMSource), nullString(e.UTMMedium), nullString(e.UTMCampaign))

	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return 0, &models.StorageError{Op: "append", Err: err}
	}
	return e.ID, nil
}

// Query returns matching events ordered by timestamp descending.
func (s *PostgresEventStore) Query(ctx context.Context, f EventFilter) ([]*models.Event, error) {
	var (
		conds []string
		args  []any
	)
	addCond := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.EventType != "" {
		addCond("event_type = $%d", f.EventType)
	}
	if f.InquiryID != "" {
		addCond("inquiry_id = $%d", f.InquiryID)
	}
	if f.Start != nil {
		addCond("timestamp >= $%d", *f.Start)
	}
	if f.End != nil {
		addCond("timestamp <= $%d", *f.End)
	}

	query := `SELECT id, event_type, inquiry_id, session_id, course, timestamp, metadata, utm_source, utm_medium, utm_campaign, created_at FROM events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e, err := scanPgEvent(rows)
		if err != nil {
			return nil, &models.StorageError{Op: "query", Err: err}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "query", Err: err}
	}
	return events, nil
}

// FunnelCounts aggregates the funnel counters in SQL so the full event
// table never crosses the wire.
func (s *PostgresEventStore) FunnelCounts(ctx context.Context, start, end *time.Time) (*FunnelCounts, error) {
	args := []any{lowerTypes(models.ConversionEventTypes)}
	query := `
		SELECT
			COUNT(DISTINCT inquiry_id),
			COUNT(DISTINCT inquiry_id) FILTER (WHERE lower(event_type) = ANY($1)),
			COUNT(*) FILTER (WHERE lower(event_type) = ANY($1))
		FROM events
		WHERE inquiry_id IS NOT NULL AND inquiry_id <> ''`
	if start != nil {
		args = append(args, *start)
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}

	var fc FunnelCounts
	if err := s.db.Pool.QueryRow(ctx, query, args...).Scan(&fc.Inquiries, &fc.Converted, &fc.Payments); err != nil {
		return nil, &models.StorageError{Op: "funnel", Err: err}
	}
	return &fc, nil
}

// DailyDistinctInquiries groups distinct inquiry ids by UTC day.
func (s *PostgresEventStore) DailyDistinctInquiries(ctx context.Context, eventTypes []string, start, end *time.Time) (map[string]int64, error) {
	var (
		args  []any
		conds = []string{"inquiry_id IS NOT NULL", "inquiry_id <> ''"}
	)
	if eventTypes != nil {
		args = append(args, lowerTypes(eventTypes))
		conds = append(conds, fmt.Sprintf("lower(event_type) = ANY($%d)", len(args)))
	}
	if start != nil {
		args = append(args, *start)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := `
		SELECT to_char(timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(DISTINCT inquiry_id)
		FROM events
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY day
		ORDER BY day`

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "daily", Err: err}
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var day string
		var n int64
		if err := rows.Scan(&day, &n); err != nil {
			return nil, &models.StorageError{Op: "daily", Err: err}
		}
		counts[day] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "daily", Err: err}
	}
	return counts, nil
}

// Tier reports the durable tier.
func (s *PostgresEventStore) Tier() Tier { return TierPostgres }

// Close closes the underlying pool.
func (s *PostgresEventStore) Close() error {
	s.db.Close()
	return nil
}

func scanPgEvent(rows pgx.Rows) (*models.Event, error) {
	var (
		e                                 models.Event
		inquiryID, sessionID, course      *string
		utmSource, utmMedium, utmCampaign *string
		metadata                          []byte
	)
	err := rows.Scan(&e.ID, &e.EventType, &inquiryID, &sessionID, &course,
		&e.Timestamp, &metadata, &utmSource, &utmMedium, &utmCampaign, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.InquiryID = deref(inquiryID)
	e.SessionID = deref(sessionID)
	e.Course = deref(course)
	e.UTMSource = deref(utmSource)
	e.UTMMedium = deref(utmMedium)
	e.UTMCampaign = deref(utmCampaign)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
