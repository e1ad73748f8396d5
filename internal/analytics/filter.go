package analytics

import (
	"strings"

	"github.com/atlasformation/funnel-engine/internal/models"
)

// The filter engine is pure: it never mutates its inputs and a record
// matches iff it satisfies every present constraint. Both ApplyRecords
// and ApplyEvents route date decisions through FilterSpec.InWindow, so a
// given timestamp gets the same inclusion decision on either path.

// ApplyRecords narrows ledger records by the filter spec.
func ApplyRecords(records []models.LedgerRecord, spec *models.FilterSpec) []models.LedgerRecord {
	if spec == nil || spec.IsZero() {
		return records
	}
	out := make([]models.LedgerRecord, 0, len(records))
	for _, r := range records {
		if matchesRecord(&r, spec) {
			out = append(out, r)
		}
	}
	return out
}

// ApplyEvents narrows events by the filter spec.
func ApplyEvents(events []*models.Event, spec *models.FilterSpec) []*models.Event {
	if spec == nil || spec.IsZero() {
		return events
	}
	out := make([]*models.Event, 0, len(events))
	for _, e := range events {
		if matchesEvent(e, spec) {
			out = append(out, e)
		}
	}
	return out
}

func matchesRecord(r *models.LedgerRecord, spec *models.FilterSpec) bool {
	if !spec.InWindow(r.Timestamp) {
		return false
	}
	if spec.Course != "" && !strings.EqualFold(r.NormalizedCourse, spec.Course) {
		return false
	}
	if spec.PaymentMethod != "" && !strings.EqualFold(r.PaymentMethod, spec.PaymentMethod) {
		return false
	}
	if spec.Language != "" && !strings.EqualFold(r.Language, spec.Language) {
		return false
	}
	if spec.UTMCampaign != "" && !strings.EqualFold(r.UTMCampaign, spec.UTMCampaign) {
		return false
	}
	if spec.InquiryID != "" && r.InquiryID != spec.InquiryID {
		return false
	}
	return true
}

func matchesEvent(e *models.Event, spec *models.FilterSpec) bool {
	ts := e.Timestamp
	if !spec.InWindow(&ts) {
		return false
	}
	if spec.EventType != "" && !strings.EqualFold(e.EventType, spec.EventType) {
		return false
	}
	if spec.InquiryID != "" && e.InquiryID != spec.InquiryID {
		return false
	}
	if spec.Course != "" && !strings.EqualFold(e.Course, spec.Course) {
		return false
	}
	if spec.UTMCampaign != "" && !strings.EqualFold(e.UTMCampaign, spec.UTMCampaign) {
		return false
	}
	return true
}
