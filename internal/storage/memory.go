package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atlasformation/funnel-engine/internal/models"
)

// MemoryEventStore is the volatile tier: an append-only in-process list
// with a manually incremented id. Data is lost on restart; callers see
// that through the persistence tag, never as a silent promotion to
// durable.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []*models.Event
	nextID int64
}

// NewMemoryEventStore constructs an empty volatile store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{nextID: 1}
}

// Append stores a copy of the event and assigns the next counter id.
func (s *MemoryEventStore) Append(ctx context.Context, e *models.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++
	e.CreatedAt = time.Now().UTC()

	cp := *e
	s.events = append(s.events, &cp)
	return e.ID, nil
}

// Query filters the list, sorts newest first and applies the limit after
// ordering.
func (s *MemoryEventStore) Query(ctx context.Context, f EventFilter) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Event
	for _, e := range s.events {
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.InquiryID != "" && e.InquiryID != f.InquiryID {
			continue
		}
		if f.Start != nil && e.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && e.Timestamp.After(*f.End) {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// FunnelCounts walks the list; the volatile tier has no cheaper option.
func (s *MemoryEventStore) FunnelCounts(ctx context.Context, start, end *time.Time) (*FunnelCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inquiries := make(map[string]struct{})
	converted := make(map[string]struct{})
	var payments int64

	for _, e := range s.events {
		if e.InquiryID == "" || !inWindow(e.Timestamp, start, end) {
			continue
		}
		inquiries[e.InquiryID] = struct{}{}
		if models.IsConversionEvent(e.EventType) {
			converted[e.InquiryID] = struct{}{}
			payments++
		}
	}

	return &FunnelCounts{
		Inquiries: int64(len(inquiries)),
		Converted: int64(len(converted)),
		Payments:  payments,
	}, nil
}

// DailyDistinctInquiries groups distinct inquiry ids by UTC day.
func (s *MemoryEventStore) DailyDistinctInquiries(ctx context.Context, eventTypes []string, start, end *time.Time) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var typeSet map[string]struct{}
	if eventTypes != nil {
		typeSet = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			typeSet[strings.ToLower(t)] = struct{}{}
		}
	}

	perDay := make(map[string]map[string]struct{})
	for _, e := range s.events {
		if e.InquiryID == "" || !inWindow(e.Timestamp, start, end) {
			continue
		}
		if typeSet != nil {
			if _, ok := typeSet[strings.ToLower(e.EventType)]; !ok {
				continue
			}
		}
		day := e.Timestamp.UTC().Format("2006-01-02")
		if perDay[day] == nil {
			perDay[day] = make(map[string]struct{})
		}
		perDay[day][e.InquiryID] = struct{}{}
	}

	counts := make(map[string]int64, len(perDay))
	for day, ids := range perDay {
		counts[day] = int64(len(ids))
	}
	return counts, nil
}

// Tier reports the volatile tier.
func (s *MemoryEventStore) Tier() Tier { return TierMemory }

// Close is a no-op for the volatile tier.
func (s *MemoryEventStore) Close() error { return nil }

func inWindow(ts time.Time, start, end *time.Time) bool {
	if start != nil && ts.Before(*start) {
		return false
	}
	if end != nil && ts.After(*end) {
		return false
	}
	return true
}
