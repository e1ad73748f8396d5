package analytics

import (
	"math"

	"github.com/atlasformation/funnel-engine/internal/models"
)

// Summarize reduces a filtered record set to the summary KPIs and the
// per-dimension paid-revenue rollups. The funnel field is attached
// separately by the service, since it comes from the event store.
func Summarize(records []models.LedgerRecord) *models.Summary {
	s := &models.Summary{
		RevenuePerCourse:        make(map[string]float64),
		RevenuePerPaymentMethod: make(map[string]float64),
		RevenuePerLanguage:      make(map[string]float64),
	}

	for _, r := range records {
		s.TotalTransactions++
		switch r.Status {
		case models.StatusPaid:
			amount := r.RevenueAmount()
			s.SuccessfulTransactions++
			s.TotalRevenue += amount
			s.PaidRevenue += amount
			s.RevenuePerCourse[bucket(r.NormalizedCourse, "Other")] += amount
			s.RevenuePerPaymentMethod[bucket(r.PaymentMethod, "other")] += amount
			s.RevenuePerLanguage[bucket(r.Language, "unknown")] += amount
		case models.StatusPending:
			s.PendingRevenue += r.RevenueAmount()
		case models.StatusFailed:
			s.FailedTransactions++
		}
	}

	if s.SuccessfulTransactions > 0 {
		s.AverageOrderValue = round2(s.TotalRevenue / float64(s.SuccessfulTransactions))
	}
	return s
}

// ConversionRate computes converted/inquiries, rounded to 4 decimal
// places, and 0 exactly when there are no inquiries.
func ConversionRate(inquiries, converted int64) float64 {
	if inquiries <= 0 {
		return 0
	}
	return round4(float64(converted) / float64(inquiries))
}

func bucket(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
