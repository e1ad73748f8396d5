package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/database"
	"github.com/atlasformation/funnel-engine/internal/models"
)

// SQLiteEventStore is the embedded tier: a single local file. It survives
// restarts but is only safe for single-instance deployments; the file
// lock does not cover multiple processes writing at once.
type SQLiteEventStore struct {
	db     *sql.DB
	closer func() error
	logger *zap.Logger
}

// Timestamps are stored as RFC3339 UTC text so lexicographic comparison
// matches chronological order and substr() extracts the day.
const sqliteTimeLayout = time.RFC3339

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type   TEXT NOT NULL,
	inquiry_id   TEXT,
	session_id   TEXT,
	course       TEXT,
	timestamp    TEXT NOT NULL,
	metadata     TEXT,
	utm_source   TEXT,
	utm_medium   TEXT,
	utm_campaign TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_inquiry_id ON events (inquiry_id);
CREATE INDEX IF NOT EXISTS idx_events_event_type ON events (event_type);`

// NewSQLiteEventStore creates the store over an opened database, running
// idempotent schema creation on every open.
func NewSQLiteEventStore(db *database.SQLiteDB, logger *zap.Logger) (*SQLiteEventStore, error) {
	store := &SQLiteEventStore{db: db.DB, closer: db.Close, logger: logger}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// newSQLiteEventStoreFromDB wires an externally managed *sql.DB; used by
// tests that substitute a mock connection.
func newSQLiteEventStoreFromDB(db *sql.DB, logger *zap.Logger) *SQLiteEventStore {
	return &SQLiteEventStore{db: db, closer: db.Close, logger: logger}
}

func (s *SQLiteEventStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return &models.StorageError{Op: "schema", Err: err}
	}
	return nil
}

// Append stores one event and returns the rowid assigned by SQLite.
func (s *SQLiteEventStore) Append(ctx context.Context, e *models.Event) (int64, error) {
	metadata, err := marshalMetadata(e.Metadata)
	if err != nil {
		return 0, &models.StorageError{Op: "append", Err: err}
	}

	e.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (event_type, inquiry_id, session_id, course, timestamp, metadata, utm_source, utm_medium, utm_campaign, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.EventType, nullString(e.InquiryID), nullString(e.SessionID), nullString(e.Course),
		e.Timestamp.UTC().Format(sqliteTimeLayout), nullBytes(metadata),
		nullString(e.UTMSource), nullString(e.UTMMedium), nullString(e.UTMCampaign),
		e.CreatedAt.Format(sqliteTimeLayout))
	if err != nil {
		return 0, &models.StorageError{Op: "append", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &models.StorageError{Op: "append", Err: err}
	}
	e.ID = id
	return id, nil
}

// Query returns matching events ordered by timestamp descending.
func (s *SQLiteEventStore) Query(ctx context.Context, f EventFilter) ([]*models.Event, error) {
	var (
		conds []string
		args  []any
	)
	if f.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.InquiryID != "" {
		conds = append(conds, "inquiry_id = ?")
		args = append(args, f.InquiryID)
	}
	if f.Start != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.Start.UTC().Format(sqliteTimeLayout))
	}
	if f.End != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, f.End.UTC().Format(sqliteTimeLayout))
	}

	query := `SELECT id, event_type, inquiry_id, session_id, course, timestamp, metadata, utm_source, utm_medium, utm_campaign, created_at FROM events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e, err := scanSQLiteEvent(rows)
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

// FunnelCounts aggregates the funnel counters in SQL. SQLite accepts no
// array parameters, so the conversion set expands into placeholders.
func (s *SQLiteEventStore) FunnelCounts(ctx context.Context, start, end *time.Time) (*FunnelCounts, error) {
	types := lowerTypes(models.ConversionEventTypes)
	in := placeholders(len(types))

	query := `
		SELECT
			COUNT(DISTINCT inquiry_id),
			COUNT(DISTINCT CASE WHEN lower(event_type) IN ` + in + ` THEN inquiry_id END),
			COALESCE(SUM(CASE WHEN lower(event_type) IN ` + in + ` THEN 1 ELSE 0 END), 0)
		FROM events
		WHERE inquiry_id IS NOT NULL AND inquiry_id <> ''`

	var args []any
	for i := 0; i < 2; i++ {
		for _, t := range types {
			args = append(args, t)
		}
	}
	if start != nil {
		query += " AND timestamp >= ?"
		args = append(args, start.UTC().Format(sqliteTimeLayout))
	}
	if end != nil {
		query += " AND timestamp <= ?"
		args = append(args, end.UTC().Format(sqliteTimeLayout))
	}

	var fc FunnelCounts
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&fc.Inquiries, &fc.Converted, &fc.Payments); err != nil {
		return nil, &models.StorageError{Op: "funnel", Err: err}
	}
	return &fc, nil
}

// DailyDistinctInquiries groups distinct inquiry ids by UTC day.
func (s *SQLiteEventStore) DailyDistinctInquiries(ctx context.Context, eventTypes []string, start, end *time.Time) (map[string]int64, error) {
	var (
		conds = []string{"inquiry_id IS NOT NULL", "inquiry_id <> ''"}
		args  []any
	)
	if eventTypes != nil {
		types := lowerTypes(eventTypes)
		conds = append(conds, "lower(event_type) IN "+placeholders(len(types)))
		for _, t := range types {
			args = append(args, t)
		}
	}
	if start != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, start.UTC().Format(sqliteTimeLayout))
	}
	if end != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, end.UTC().Format(sqliteTimeLayout))
	}

	query := `
		SELECT substr(timestamp, 1, 10) AS day, COUNT(DISTINCT inquiry_id)
		FROM events
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY day
		ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// Tier reports the embedded tier.
func (s *SQLiteEventStore) Tier() Tier { return TierSQLite }

// Close closes the database file.
func (s *SQLiteEventStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

func scanSQLiteEvent(rows *sql.Rows) (*models.Event, error) {
	var (
		e                                 models.Event
		inquiryID, sessionID, course      sql.NullString
		utmSource, utmMedium, utmCampaign sql.NullString
		metadata                          sql.NullString
		ts, createdAt                     string
	)
	err := rows.Scan(&e.ID, &e.EventType, &inquiryID, &sessionID, &course,
		&ts, &metadata, &utmSource, &utmMedium, &utmCampaign, &createdAt)
	if err != nil {
		return nil, err
	}
	e.InquiryID = inquiryID.String
	e.SessionID = sessionID.String
	e.Course = course.String
	e.UTMSource = utmSource.String
	e.UTMMedium = utmMedium.String
	e.UTMCampaign = utmCampaign.String
	if e.Timestamp, err = time.Parse(sqliteTimeLayout, ts); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func placeholders(n int) string {
	return "(" + strings.Repeat("?, ", n-1) + "?)"
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
