package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasformation/funnel-engine/internal/models"
)

func day(d, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func seedMemoryStore(t *testing.T, events ...*models.Event) *MemoryEventStore {
	t.Helper()
	store := NewMemoryEventStore()
	for _, e := range events {
		_, err := store.Append(context.Background(), e)
		require.NoError(t, err)
	}
	return store
}

func TestMemoryStoreAppend(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()

	e := &models.Event{EventType: "inquiry", InquiryID: "A1", Timestamp: day(1, 9)}
	id, err := store.Append(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.False(t, e.CreatedAt.IsZero())

	id, err = store.Append(ctx, &models.Event{EventType: "page_view", Timestamp: day(1, 10)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id, "ids are sequential")

	assert.Equal(t, TierMemory, store.Tier())
}

func TestMemoryStoreQuery_NewestFirstLimitAfterOrdering(t *testing.T) {
	store := seedMemoryStore(t,
		&models.Event{EventType: "inquiry", InquiryID: "A", Timestamp: day(1, 9)},
		&models.Event{EventType: "inquiry", InquiryID: "B", Timestamp: day(3, 9)},
		&models.Event{EventType: "inquiry", InquiryID: "C", Timestamp: day(2, 9)},
	)

	got, err := store.Query(context.Background(), EventFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// The two NEWEST events, not the first two appended.
	assert.Equal(t, "B", got[0].InquiryID)
	assert.Equal(t, "C", got[1].InquiryID)
}

func TestMemoryStoreQuery_Filters(t *testing.T) {
	store := seedMemoryStore(t,
		&models.Event{EventType: "inquiry", InquiryID: "A", Timestamp: day(1, 9)},
		&models.Event{EventType: "payment", InquiryID: "A", Timestamp: day(2, 9)},
		&models.Event{EventType: "inquiry", InquiryID: "B", Timestamp: day(5, 9)},
	)
	ctx := context.Background()

	got, err := store.Query(ctx, EventFilter{EventType: "payment"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].InquiryID)

	got, err = store.Query(ctx, EventFilter{InquiryID: "A"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	start, end := day(1, 0), day(3, 0)
	got, err = store.Query(ctx, EventFilter{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryStoreFunnelCounts(t *testing.T) {
	store := seedMemoryStore(t,
		&models.Event{EventType: "inquiry", InquiryID: "A1", Timestamp: day(1, 9)},
		&models.Event{EventType: "inquiry", InquiryID: "A1", Timestamp: day(1, 10)},
		&models.Event{EventType: "paid", InquiryID: "A1", Timestamp: day(2, 9)},
		&models.Event{EventType: "inquiry", InquiryID: "B2", Timestamp: day(3, 9)},
		// No inquiry id: invisible to the funnel.
		&models.Event{EventType: "page_view", Timestamp: day(3, 10)},
	)

	fc, err := store.FunnelCounts(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fc.Inquiries, "distinct inquiry ids")
	assert.Equal(t, int64(1), fc.Converted)
	assert.Equal(t, int64(1), fc.Payments)
}

func TestMemoryStoreFunnelCounts_Window(t *testing.T) {
	store := seedMemoryStore(t,
		&models.Event{EventType: "inquiry", InquiryID: "A1", Timestamp: day(1, 9)},
		&models.Event{EventType: "paid", InquiryID: "A1", Timestamp: day(10, 9)},
	)

	end := day(5, 0)
	fc, err := store.FunnelCounts(context.Background(), nil, &end)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fc.Inquiries)
	assert.Equal(t, int64(0), fc.Converted, "conversion outside the window does not count")
}

func TestMemoryStoreDailyDistinctInquiries(t *testing.T) {
	store := seedMemoryStore(t,
		&models.Event{EventType: "inquiry", InquiryID: "A", Timestamp: day(1, 9)},
		&models.Event{EventType: "inquiry", InquiryID: "A", Timestamp: day(1, 15)},
		&models.Event{EventType: "inquiry", InquiryID: "B", Timestamp: day(1, 18)},
		&models.Event{EventType: "payment", InquiryID: "A", Timestamp: day(2, 9)},
	)
	ctx := context.Background()

	all, err := store.DailyDistinctInquiries(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2024-03-01": 2, "2024-03-02": 1}, all)

	// Type filtering is case-insensitive.
	conversions, err := store.DailyDistinctInquiries(ctx, []string{"PAYMENT"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2024-03-02": 1}, conversions)
}
