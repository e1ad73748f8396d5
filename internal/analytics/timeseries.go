package analytics

import (
	"sort"

	"github.com/atlasformation/funnel-engine/internal/models"
)

// Time-series metric names accepted by the service.
const (
	MetricDailyRevenue     = "daily_revenue"
	MetricDailyInquiries   = "daily_inquiries"
	MetricDailyConversions = "daily_conversions"
	MetricDailyFunnel      = "daily_funnel"
)

// RevenueByDay buckets paid records by the date portion of their parsed
// timestamp. Records without a timestamp carry no date and are skipped.
func RevenueByDay(records []models.LedgerRecord) *models.TimeSeries {
	perDay := make(map[string]float64)
	for _, r := range records {
		if !r.IsPaid() || r.Timestamp == nil {
			continue
		}
		perDay[r.Timestamp.UTC().Format("2006-01-02")] += r.RevenueAmount()
	}
	return seriesFromMap(perDay)
}

// SeriesFromCounts converts a per-day count map, as produced by the event
// store, into an ordered time series.
func SeriesFromCounts(counts map[string]int64) *models.TimeSeries {
	perDay := make(map[string]float64, len(counts))
	for day, n := range counts {
		perDay[day] = float64(n)
	}
	return seriesFromMap(perDay)
}

// MergeFunnelSeries aligns daily inquiry and conversion counts over the
// union of their dates. A date present on either side appears in the
// labels, with 0 (not a gap) filled on the side that lacks it.
func MergeFunnelSeries(inquiries, conversions map[string]int64) *models.FunnelTimeSeries {
	dates := make(map[string]struct{}, len(inquiries)+len(conversions))
	for day := range inquiries {
		dates[day] = struct{}{}
	}
	for day := range conversions {
		dates[day] = struct{}{}
	}

	labels := make([]string, 0, len(dates))
	for day := range dates {
		labels = append(labels, day)
	}
	sort.Strings(labels)

	out := &models.FunnelTimeSeries{
		Labels: labels,
		Series: models.FunnelSeriesValues{
			Inquiries:   make([]float64, len(labels)),
			Conversions: make([]float64, len(labels)),
		},
	}
	for i, day := range labels {
		out.Series.Inquiries[i] = float64(inquiries[day])
		out.Series.Conversions[i] = float64(conversions[day])
	}
	return out
}

func seriesFromMap(perDay map[string]float64) *models.TimeSeries {
	labels := make([]string, 0, len(perDay))
	for day := range perDay {
		labels = append(labels, day)
	}
	sort.Strings(labels)

	series := make([]float64, len(labels))
	for i, day := range labels {
		series[i] = perDay[day]
	}
	return &models.TimeSeries{Labels: labels, Series: series}
}
