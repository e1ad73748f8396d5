package storage

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/config"
	"github.com/atlasformation/funnel-engine/internal/database"
	"github.com/atlasformation/funnel-engine/internal/models"
)

// Tier identifies which storage backend is serving the event store.
type Tier string

const (
	TierPostgres Tier = "postgres"
	TierSQLite   Tier = "sqlite"
	TierMemory   Tier = "memory"
)

// DefaultQueryLimit caps query results when the caller does not supply a
// limit. The limit is applied after ordering, never before.
const DefaultQueryLimit = 100

// EventFilter is the conjunctive predicate for event queries. Zero fields
// are not constraints.
type EventFilter struct {
	EventType string
	InquiryID string
	Start     *time.Time
	End       *time.Time
	Limit     int
}

// FunnelCounts holds the raw funnel counters computed by a store.
// Inquiries and Converted count distinct inquiry ids; Payments counts
// conversion events without deduplication.
type FunnelCounts struct {
	Inquiries int64
	Converted int64
	Payments  int64
}

// EventStore is the uniform write/query contract over the three storage
// tiers. Funnel and daily counts are part of the contract so that SQL
// tiers can aggregate server-side instead of loading the table into
// memory; all tiers must produce identical results for the same data.
type EventStore interface {
	// Append stores the event, assigning its id and ingestion time.
	// Missing optional fields are stored as nulls, never rejected.
	Append(ctx context.Context, e *models.Event) (int64, error)

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, f EventFilter) ([]*models.Event, error)

	// FunnelCounts computes the funnel counters over events carrying an
	// inquiry id, optionally bounded by timestamp.
	FunnelCounts(ctx context.Context, start, end *time.Time) (*FunnelCounts, error)

	// DailyDistinctInquiries returns, per YYYY-MM-DD day, the number of
	// distinct inquiry ids among events whose lowercased type is in
	// eventTypes. A nil eventTypes means all inquiry-bearing events.
	DailyDistinctInquiries(ctx context.Context, eventTypes []string, start, end *time.Time) (map[string]int64, error)

	// Tier reports which backend serves this store.
	Tier() Tier

	Close() error
}

// Open selects the storage tier for the process lifetime: the durable
// PostgreSQL tier when a database URL is configured, else the embedded
// SQLite file, else the volatile in-memory store. Each fallback is logged;
// the memory tier is an accepted degradation, never presented as durable.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) EventStore {
	if cfg.Database.URL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err == nil {
			store, serr := NewPostgresEventStore(ctx, db, logger)
			if serr == nil {
				return store
			}
			db.Close()
			logger.Warn("postgres schema setup failed, falling back to embedded tier", zap.Error(serr))
		} else {
			logger.Warn("PostgreSQL not available, falling back to embedded tier", zap.Error(err))
		}
	}

	sq, err := database.NewSQLiteDB(cfg.SQLite.Path, logger)
	if err == nil {
		store, serr := NewSQLiteEventStore(sq, logger)
		if serr == nil {
			return store
		}
		sq.Close()
		logger.Warn("sqlite schema setup failed, falling back to memory tier", zap.Error(serr))
	} else {
		logger.Warn("embedded database not available, falling back to memory tier", zap.Error(err))
	}

	logger.Warn("using volatile in-memory event store; events will not survive a restart")
	return NewMemoryEventStore()
}

// lowerTypes returns the lowercased copy used in SQL predicates.
func lowerTypes(types []string) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = strings.ToLower(t)
	}
	return out
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
