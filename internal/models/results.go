package models

// Summary aggregates revenue and transaction KPIs over a filtered set of
// ledger records. Revenue figures are in MAD and only count paid records,
// except PendingRevenue which sums pending ones.
type Summary struct {
	TotalRevenue   float64 `json:"total_revenue"`
	PaidRevenue    float64 `json:"paid_revenue"`
	PendingRevenue float64 `json:"pending_revenue"`

	TotalTransactions      int `json:"total_transactions"`
	SuccessfulTransactions int `json:"successful_transactions"`
	FailedTransactions     int `json:"failed_transactions"`

	AverageOrderValue float64 `json:"average_order_value"`

	RevenuePerCourse        map[string]float64 `json:"revenue_per_course"`
	RevenuePerPaymentMethod map[string]float64 `json:"revenue_per_payment_method"`
	RevenuePerLanguage      map[string]float64 `json:"revenue_per_language"`

	// Funnel is best-effort: it is omitted when the event store could not
	// be reached, without failing the summary itself.
	Funnel *FunnelStats `json:"funnel,omitempty"`
}

// FunnelStats counts the inquiry -> conversion pipeline over the event
// stream. Inquiries and Converted count distinct inquiry ids; Payments is
// the raw count of conversion events.
type FunnelStats struct {
	Inquiries      int64   `json:"inquiries"`
	Converted      int64   `json:"converted"`
	Payments       int64   `json:"payments"`
	ConversionRate float64 `json:"conversion_rate"`
}

// TimeSeries is a day-bucketed metric: Labels are YYYY-MM-DD strings in
// ascending order (gaps allowed), Series is aligned 1:1 with Labels.
type TimeSeries struct {
	Labels []string  `json:"labels"`
	Series []float64 `json:"series"`
}

// FunnelTimeSeries carries two aligned daily series over the union of
// dates present in either side, zero-filled where one side has no data.
type FunnelTimeSeries struct {
	Labels []string           `json:"labels"`
	Series FunnelSeriesValues `json:"series"`
}

// FunnelSeriesValues holds the per-day values of a FunnelTimeSeries.
type FunnelSeriesValues struct {
	Inquiries   []float64 `json:"inquiries"`
	Conversions []float64 `json:"conversions"`
}

// CampaignAttribution is one campaign bucket of the attribution rollup.
// Records with no campaign (or the literal "undefined" the tracking pixel
// emits) fall into the Organic/Direct bucket.
type CampaignAttribution struct {
	Campaign    string  `json:"campaign"`
	Count       int     `json:"count"`
	PaidCount   int     `json:"paid_count"`
	PaidRevenue float64 `json:"paid_revenue"`

	Sources  []AttributionGroup `json:"sources"`
	Contents []AttributionGroup `json:"contents"`
	Terms    []AttributionGroup `json:"terms"`
}

// AttributionGroup is a sub-group within a campaign: a (source, medium)
// pair, a content variant or a term.
type AttributionGroup struct {
	Key         string  `json:"key"`
	Count       int     `json:"count"`
	PaidCount   int     `json:"paid_count"`
	PaidRevenue float64 `json:"paid_revenue"`
}

// OrganicCampaign is the attribution bucket for records without campaign
// attribution.
const OrganicCampaign = "Organic/Direct"
