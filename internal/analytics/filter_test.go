package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasformation/funnel-engine/internal/models"
)

func ts(day int) *time.Time {
	t := time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestApplyRecords_EmptySpecIsIdentity(t *testing.T) {
	records := []models.LedgerRecord{
		{InquiryID: "A", Timestamp: ts(1)},
		{InquiryID: "B", Timestamp: nil},
		{InquiryID: "C", Status: models.StatusPaid},
	}

	assert.Equal(t, records, ApplyRecords(records, nil))
	assert.Equal(t, records, ApplyRecords(records, &models.FilterSpec{}))
}

func TestApplyRecords_Conjunction(t *testing.T) {
	records := []models.LedgerRecord{
		{InquiryID: "A", NormalizedCourse: "PMP", Language: "fr", Timestamp: ts(10)},
		{InquiryID: "B", NormalizedCourse: "PMP", Language: "en", Timestamp: ts(10)},
		{InquiryID: "C", NormalizedCourse: "QSE", Language: "fr", Timestamp: ts(10)},
	}

	got := ApplyRecords(records, &models.FilterSpec{Course: "pmp", Language: "FR"})
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].InquiryID)
}

func TestApplyRecords_NilTimestampFailsDateBoundedFilter(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []models.LedgerRecord{
		{InquiryID: "dated", Timestamp: ts(5)},
		{InquiryID: "undated", Timestamp: nil},
	}

	got := ApplyRecords(records, &models.FilterSpec{Start: &start})
	require.Len(t, got, 1)
	assert.Equal(t, "dated", got[0].InquiryID)

	// Without date bounds the undated record passes.
	got = ApplyRecords(records, &models.FilterSpec{InquiryID: "undated"})
	require.Len(t, got, 1)
	assert.Equal(t, "undated", got[0].InquiryID)
}

func TestApplyEvents(t *testing.T) {
	events := []*models.Event{
		{ID: 1, EventType: "inquiry", InquiryID: "A", Timestamp: *ts(5)},
		{ID: 2, EventType: "payment", InquiryID: "A", Timestamp: *ts(6)},
		{ID: 3, EventType: "inquiry", InquiryID: "B", Timestamp: *ts(20)},
	}

	got := ApplyEvents(events, &models.FilterSpec{EventType: "INQUIRY"})
	require.Len(t, got, 2)

	end := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	got = ApplyEvents(events, &models.FilterSpec{End: &end})
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)

	assert.Equal(t, events, ApplyEvents(events, nil))
}

// The ledger path and the event path must agree on date inclusion for the
// same timestamp and window.
func TestFilterDateParity(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	spec := &models.FilterSpec{Start: &start, End: &end}

	stamps := []time.Time{
		time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
		start,
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		end,
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	for _, stamp := range stamps {
		stamp := stamp
		records := ApplyRecords([]models.LedgerRecord{{Timestamp: &stamp}}, spec)
		events := ApplyEvents([]*models.Event{{Timestamp: stamp}}, spec)
		assert.Equal(t, len(records), len(events), "divergent inclusion for %v", stamp)
	}
}
