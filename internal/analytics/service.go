package analytics

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/cache"
	"github.com/atlasformation/funnel-engine/internal/geo"
	"github.com/atlasformation/funnel-engine/internal/ledger"
	"github.com/atlasformation/funnel-engine/internal/metrics"
	"github.com/atlasformation/funnel-engine/internal/models"
	"github.com/atlasformation/funnel-engine/internal/storage"
)

// Service is the engine facade handed to request handlers: event
// ingestion and queries against the store, plus the aggregations joining
// the ledger snapshot with the event stream. It is constructed once per
// process and carries no per-request state.
type Service struct {
	store   storage.EventStore
	reader  *ledger.Reader
	results cache.Cache
	geo     geo.Provider
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService wires the engine together. geoProvider may be nil when geo
// enrichment is disabled.
func NewService(store storage.EventStore, reader *ledger.Reader, results cache.Cache, geoProvider geo.Provider, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		reader:  reader,
		results: results,
		geo:     geoProvider,
		metrics: m,
		logger:  logger,
	}
}

// IngestEvent validates, enriches and appends one event, returning the
// assigned id and the tier that served the write so callers can tell
// durable writes from at-risk ones.
func (s *Service) IngestEvent(ctx context.Context, e *models.Event, clientIP string) (int64, storage.Tier, error) {
	if e.EventType == "" {
		return 0, "", &models.ValidationError{Field: "event_type", Reason: "must not be empty"}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	s.enrichGeo(e, clientIP)

	id, err := s.store.Append(ctx, e)
	if err != nil {
		s.metrics.StorageErrors.WithLabelValues(string(s.store.Tier()), "append").Inc()
		return 0, "", err
	}

	s.metrics.EventsIngested.WithLabelValues(string(s.store.Tier()), e.EventType).Inc()
	return id, s.store.Tier(), nil
}

// enrichGeo attaches country/city metadata when a provider is configured.
// A failed lookup never fails the write.
func (s *Service) enrichGeo(e *models.Event, clientIP string) {
	if s.geo == nil || clientIP == "" {
		return
	}
	info, err := s.geo.Lookup(clientIP)
	if err != nil {
		s.logger.Debug("geo lookup failed", zap.String("ip", clientIP), zap.Error(err))
		return
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	if info.CountryCode != "" {
		e.Metadata["geo_country"] = info.CountryCode
	}
	if info.City != "" {
		e.Metadata["geo_city"] = info.City
	}
}

// QueryEvents returns matching events, newest first.
func (s *Service) QueryEvents(ctx context.Context, f storage.EventFilter) ([]*models.Event, error) {
	events, err := s.store.Query(ctx, f)
	if err != nil {
		s.metrics.StorageErrors.WithLabelValues(string(s.store.Tier()), "query").Inc()
		return nil, err
	}
	return events, nil
}

// Tier reports the storage tier serving this process.
func (s *Service) Tier() storage.Tier { return s.store.Tier() }

// Summary computes the summary KPIs, per-dimension revenue rollups and a
// best-effort funnel over the filtered ledger snapshot. An unreachable
// event store degrades the response by omitting the funnel; it never
// fails the summary.
func (s *Service) Summary(ctx context.Context, spec *models.FilterSpec) (*models.Summary, error) {
	key := "summary:" + spec.CacheKey()
	if cached, ok := s.cacheGet(ctx, "summary", key); ok {
		var out models.Summary
		if err := json.Unmarshal(cached, &out); err == nil {
			return &out, nil
		}
	}

	start := time.Now()
	records, err := s.fetchLedger(ctx)
	if err != nil {
		return nil, err
	}

	summary := Summarize(ApplyRecords(records, spec))

	if fc, err := s.store.FunnelCounts(ctx, spec.Start, spec.End); err != nil {
		s.metrics.FunnelOmitted.Inc()
		s.logger.Warn("funnel computation failed, omitting from summary", zap.Error(err))
	} else {
		summary.Funnel = &models.FunnelStats{
			Inquiries:      fc.Inquiries,
			Converted:      fc.Converted,
			Payments:       fc.Payments,
			ConversionRate: ConversionRate(fc.Inquiries, fc.Converted),
		}
	}

	s.metrics.QueryDuration.WithLabelValues("summary").Observe(time.Since(start).Seconds())
	s.cacheSet(ctx, key, summary)
	return summary, nil
}

// Funnel computes the funnel KPIs over the event stream for the given
// window, via the store's aggregation contract.
func (s *Service) Funnel(ctx context.Context, startAt, endAt *time.Time) (*models.FunnelStats, error) {
	fc, err := s.store.FunnelCounts(ctx, startAt, endAt)
	if err != nil {
		s.metrics.StorageErrors.WithLabelValues(string(s.store.Tier()), "funnel").Inc()
		return nil, err
	}
	return &models.FunnelStats{
		Inquiries:      fc.Inquiries,
		Converted:      fc.Converted,
		Payments:       fc.Payments,
		ConversionRate: ConversionRate(fc.Inquiries, fc.Converted),
	}, nil
}

// TimeSeries computes one of the day-bucketed metrics. The result is
// either a TimeSeries or, for daily_funnel, a FunnelTimeSeries.
func (s *Service) TimeSeries(ctx context.Context, metric string, startAt, endAt *time.Time) (any, error) {
	spec := &models.FilterSpec{Start: startAt, End: endAt}
	key := "timeseries:" + metric + ":" + spec.CacheKey()
	if cached, ok := s.cacheGet(ctx, "timeseries", key); ok {
		return json.RawMessage(cached), nil
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	switch metric {
	case MetricDailyRevenue:
		var records []models.LedgerRecord
		if records, err = s.fetchLedger(ctx); err == nil {
			result = RevenueByDay(ApplyRecords(records, spec))
		}
	case MetricDailyInquiries:
		var counts map[string]int64
		if counts, err = s.store.DailyDistinctInquiries(ctx, nil, startAt, endAt); err == nil {
			result = SeriesFromCounts(counts)
		}
	case MetricDailyConversions:
		var counts map[string]int64
		if counts, err = s.store.DailyDistinctInquiries(ctx, models.ConversionEventTypes, startAt, endAt); err == nil {
			result = SeriesFromCounts(counts)
		}
	case MetricDailyFunnel:
		var inquiries, conversions map[string]int64
		if inquiries, err = s.store.DailyDistinctInquiries(ctx, nil, startAt, endAt); err == nil {
			if conversions, err = s.store.DailyDistinctInquiries(ctx, models.ConversionEventTypes, startAt, endAt); err == nil {
				result = MergeFunnelSeries(inquiries, conversions)
			}
		}
	default:
		return nil, &models.ValidationError{Field: "metric", Reason: "unknown metric " + metric}
	}
	if err != nil {
		return nil, err
	}

	s.metrics.QueryDuration.WithLabelValues("timeseries").Observe(time.Since(start).Seconds())
	s.cacheSet(ctx, key, result)
	return result, nil
}

// Attribution computes the hierarchical campaign rollup over the filtered
// ledger snapshot.
func (s *Service) Attribution(ctx context.Context, spec *models.FilterSpec) ([]models.CampaignAttribution, error) {
	key := "attribution:" + spec.CacheKey()
	if cached, ok := s.cacheGet(ctx, "attribution", key); ok {
		var out []models.CampaignAttribution
		if err := json.Unmarshal(cached, &out); err == nil {
			return out, nil
		}
	}

	start := time.Now()
	records, err := s.fetchLedger(ctx)
	if err != nil {
		return nil, err
	}

	rollup := AttributeCampaigns(ApplyRecords(records, spec))

	s.metrics.QueryDuration.WithLabelValues("attribution").Observe(time.Since(start).Seconds())
	s.cacheSet(ctx, key, rollup)
	return rollup, nil
}

// LedgerRecords returns the filtered normalized snapshot, for the admin
// table view.
func (s *Service) LedgerRecords(ctx context.Context, spec *models.FilterSpec) ([]models.LedgerRecord, error) {
	records, err := s.fetchLedger(ctx)
	if err != nil {
		return nil, err
	}
	return ApplyRecords(records, spec), nil
}

func (s *Service) fetchLedger(ctx context.Context) ([]models.LedgerRecord, error) {
	s.metrics.LedgerFetches.Inc()
	start := time.Now()
	records, err := s.reader.FetchAll(ctx)
	s.metrics.LedgerFetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.LedgerFetchErrors.Inc()
		return nil, err
	}
	return records, nil
}

func (s *Service) cacheGet(ctx context.Context, op, key string) ([]byte, bool) {
	b, ok := s.results.Get(ctx, key)
	if ok {
		s.metrics.CacheHits.WithLabelValues(op).Inc()
	} else {
		s.metrics.CacheMisses.WithLabelValues(op).Inc()
	}
	return b, ok
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to serialize result for caching", zap.Error(err))
		return
	}
	s.results.Set(ctx, key, b)
}
