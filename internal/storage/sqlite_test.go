package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/models"
)

func newMockSQLiteStore(t *testing.T) (*SQLiteEventStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newSQLiteEventStoreFromDB(db, zap.NewNop()), mock
}

func TestSQLiteStoreAppend(t *testing.T) {
	store, mock := newMockSQLiteStore(t)

	mock.ExpectExec("INSERT INTO events").
		WithArgs("payment", "INQ-1", nil, nil, sqlmock.AnyArg(), nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	e := &models.Event{
		EventType: "payment",
		InquiryID: "INQ-1",
		Timestamp: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	id, err := store.Append(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreAppend_Error(t *testing.T) {
	store, mock := newMockSQLiteStore(t)

	mock.ExpectExec("INSERT INTO events").
		WillReturnError(assert.AnError)

	_, err := store.Append(context.Background(), &models.Event{EventType: "inquiry", Timestamp: time.Now()})
	var serr *models.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "append", serr.Op)
}

func TestSQLiteStoreQuery(t *testing.T) {
	store, mock := newMockSQLiteStore(t)

	columns := []string{
		"id", "event_type", "inquiry_id", "session_id", "course",
		"timestamp", "metadata", "utm_source", "utm_medium", "utm_campaign", "created_at",
	}
	mock.ExpectQuery("SELECT id, event_type, inquiry_id").
		WithArgs("inquiry", 100).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(7, "inquiry", "INQ-1", nil, "PMP",
				"2024-03-15T10:00:00Z", `{"geo_country":"MA"}`, "facebook", nil, "promo", "2024-03-15T10:00:01Z"))

	events, err := store.Query(context.Background(), EventFilter{EventType: "inquiry"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, int64(7), e.ID)
	assert.Equal(t, "INQ-1", e.InquiryID)
	assert.Equal(t, "PMP", e.Course)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), e.Timestamp.UTC())
	assert.Equal(t, "MA", e.Metadata["geo_country"])
	assert.Equal(t, "facebook", e.UTMSource)
	assert.Equal(t, "", e.UTMMedium)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreFunnelCounts(t *testing.T) {
	store, mock := newMockSQLiteStore(t)

	mock.ExpectQuery(`COUNT\(DISTINCT inquiry_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"inquiries", "converted", "payments"}).
			AddRow(10, 3, 4))

	fc, err := store.FunnelCounts(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), fc.Inquiries)
	assert.Equal(t, int64(3), fc.Converted)
	assert.Equal(t, int64(4), fc.Payments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreDailyDistinctInquiries(t *testing.T) {
	store, mock := newMockSQLiteStore(t)

	mock.ExpectQuery(`substr\(timestamp, 1, 10\)`).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).
			AddRow("2024-03-01", 5).
			AddRow("2024-03-02", 2))

	counts, err := store.DailyDistinctInquiries(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2024-03-01": 5, "2024-03-02": 2}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreQuery_WindowBounds(t *testing.T) {
	store, mock := newMockSQLiteStore(t)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery("SELECT id, event_type, inquiry_id").
		WithArgs("2024-03-01T00:00:00Z", "2024-03-31T23:59:59Z", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_type", "inquiry_id", "session_id", "course",
			"timestamp", "metadata", "utm_source", "utm_medium", "utm_campaign", "created_at",
		}))

	_, err := store.Query(context.Background(), EventFilter{Start: &start, End: &end, Limit: 50})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
