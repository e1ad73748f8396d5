package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/cache"
	"github.com/atlasformation/funnel-engine/internal/ledger"
	"github.com/atlasformation/funnel-engine/internal/metrics"
	"github.com/atlasformation/funnel-engine/internal/models"
	"github.com/atlasformation/funnel-engine/internal/storage"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metrics.NewMetrics("analytics_test")

type stubRows struct {
	rows []map[string]string
	err  error
}

func (s *stubRows) FetchRows(ctx context.Context) ([]map[string]string, error) {
	return s.rows, s.err
}

// brokenStore fails every operation, for exercising degradation paths.
type brokenStore struct{}

func (brokenStore) Append(ctx context.Context, e *models.Event) (int64, error) {
	return 0, &models.StorageError{Op: "append", Err: errors.New("down")}
}

func (brokenStore) Query(ctx context.Context, f storage.EventFilter) ([]*models.Event, error) {
	return nil, &models.StorageError{Op: "query", Err: errors.New("down")}
}

func (brokenStore) FunnelCounts(ctx context.Context, start, end *time.Time) (*storage.FunnelCounts, error) {
	return nil, &models.StorageError{Op: "funnel", Err: errors.New("down")}
}

func (brokenStore) DailyDistinctInquiries(ctx context.Context, eventTypes []string, start, end *time.Time) (map[string]int64, error) {
	return nil, &models.StorageError{Op: "daily", Err: errors.New("down")}
}

func (brokenStore) Tier() storage.Tier { return storage.TierMemory }
func (brokenStore) Close() error       { return nil }

func newTestService(t *testing.T, store storage.EventStore, rows *stubRows) *Service {
	t.Helper()
	logger := zap.NewNop()
	reader := ledger.NewReader(rows, logger)
	results := cache.NewMemoryCache(20 * time.Second)
	return NewService(store, reader, results, nil, testMetrics, logger)
}

func TestServiceIngestEvent(t *testing.T) {
	store := storage.NewMemoryEventStore()
	svc := newTestService(t, store, &stubRows{})
	ctx := context.Background()

	id, tier, err := svc.IngestEvent(ctx, &models.Event{EventType: "inquiry", InquiryID: "A1"}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, storage.TierMemory, tier)

	// Missing timestamp defaults to ingestion time.
	events, err := svc.QueryEvents(ctx, storage.EventFilter{InquiryID: "A1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestServiceIngestEvent_MissingType(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryEventStore(), &stubRows{})

	_, _, err := svc.IngestEvent(context.Background(), &models.Event{}, "")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "event_type", verr.Field)
}

func TestServiceFunnel(t *testing.T) {
	store := storage.NewMemoryEventStore()
	svc := newTestService(t, store, &stubRows{})
	ctx := context.Background()

	// Two inquiries and one payment for the same lead.
	for _, eventType := range []string{"inquiry", "inquiry", "paid"} {
		_, _, err := svc.IngestEvent(ctx, &models.Event{EventType: eventType, InquiryID: "A1"}, "")
		require.NoError(t, err)
	}

	stats, err := svc.Funnel(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Inquiries)
	assert.Equal(t, int64(1), stats.Converted)
	assert.Equal(t, int64(1), stats.Payments)
	assert.Equal(t, 1.0, stats.ConversionRate)
}

func TestServiceSummary(t *testing.T) {
	store := storage.NewMemoryEventStore()
	rows := &stubRows{rows: []map[string]string{
		{"status": "paid", "amount": "200", "course": "pmp"},
		{"status": "paid", "amount": "300", "course": "qse"},
		{"status": "pending", "amount": "500"},
	}}
	svc := newTestService(t, store, rows)
	ctx := context.Background()

	_, _, err := svc.IngestEvent(ctx, &models.Event{EventType: "inquiry", InquiryID: "A1"}, "")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, &models.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 500.0, summary.TotalRevenue)
	assert.Equal(t, 500.0, summary.PendingRevenue)
	assert.Equal(t, 250.0, summary.AverageOrderValue)
	require.NotNil(t, summary.Funnel)
	assert.Equal(t, int64(1), summary.Funnel.Inquiries)

	// Second call is served from the cache even if the ledger goes away.
	rows.err = &models.UpstreamError{Op: "fetch", Err: errors.New("down")}
	cached, err := svc.Summary(ctx, &models.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, summary.TotalRevenue, cached.TotalRevenue)
}

func TestServiceSummary_FunnelOmittedOnStoreFailure(t *testing.T) {
	rows := &stubRows{rows: []map[string]string{
		{"status": "paid", "amount": "100"},
	}}
	svc := newTestService(t, brokenStore{}, rows)

	summary, err := svc.Summary(context.Background(), &models.FilterSpec{})
	require.NoError(t, err, "a broken event store must not fail the summary")
	assert.Equal(t, 100.0, summary.TotalRevenue)
	assert.Nil(t, summary.Funnel, "funnel is omitted, not zeroed")
}

func TestServiceSummary_UpstreamFailure(t *testing.T) {
	rows := &stubRows{err: &models.UpstreamError{Op: "fetch", Err: errors.New("down")}}
	svc := newTestService(t, storage.NewMemoryEventStore(), rows)

	_, err := svc.Summary(context.Background(), &models.FilterSpec{})
	var upstream *models.UpstreamError
	require.ErrorAs(t, err, &upstream)
}

func TestServiceTimeSeries(t *testing.T) {
	store := storage.NewMemoryEventStore()
	rows := &stubRows{rows: []map[string]string{
		{"status": "paid", "amount": "150", "timestamp": "2024-03-01T09:00:00Z"},
		{"status": "paid", "amount": "50", "timestamp": "2024-03-01T18:00:00Z"},
	}}
	svc := newTestService(t, store, rows)
	ctx := context.Background()

	day := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	_, _, err := svc.IngestEvent(ctx, &models.Event{EventType: "inquiry", InquiryID: "A1", Timestamp: day}, "")
	require.NoError(t, err)
	_, _, err = svc.IngestEvent(ctx, &models.Event{EventType: "payment", InquiryID: "A1", Timestamp: day}, "")
	require.NoError(t, err)

	revenue, err := svc.TimeSeries(ctx, MetricDailyRevenue, nil, nil)
	require.NoError(t, err)
	rts, ok := revenue.(*models.TimeSeries)
	require.True(t, ok)
	assert.Equal(t, []string{"2024-03-01"}, rts.Labels)
	assert.Equal(t, []float64{200}, rts.Series)

	funnel, err := svc.TimeSeries(ctx, MetricDailyFunnel, nil, nil)
	require.NoError(t, err)
	fts, ok := funnel.(*models.FunnelTimeSeries)
	require.True(t, ok)
	assert.Equal(t, []string{"2024-03-02"}, fts.Labels)
	assert.Equal(t, []float64{1}, fts.Series.Inquiries)
	assert.Equal(t, []float64{1}, fts.Series.Conversions)

	_, err = svc.TimeSeries(ctx, "hourly_revenue", nil, nil)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestServiceAttribution(t *testing.T) {
	rows := &stubRows{rows: []map[string]string{
		{"status": "paid", "amount": "100", "utm_campaign": "promo", "utm_source": "facebook", "utm_medium": "cpc"},
		{"status": "pending", "utm_campaign": ""},
	}}
	svc := newTestService(t, storage.NewMemoryEventStore(), rows)

	out, err := svc.Attribution(context.Background(), &models.FilterSpec{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "promo", out[0].Campaign)
	assert.Equal(t, models.OrganicCampaign, out[1].Campaign)
}
