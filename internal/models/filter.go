package models

import (
	"fmt"
	"strings"
	"time"
)

// FilterSpec is the caller-supplied narrowing criteria applied to ledger
// records and events. A zero field means "no constraint", never "match
// empty". End is inclusive; callers parsing a bare YYYY-MM-DD end date are
// expected to expand it to end-of-day before building the spec.
type FilterSpec struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	Course        string `json:"course,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Language      string `json:"language,omitempty"`
	UTMCampaign   string `json:"utm_campaign,omitempty"`
	EventType     string `json:"event_type,omitempty"`
	InquiryID     string `json:"inquiry_id,omitempty"`
}

// IsZero reports whether no constraint is set.
func (f *FilterSpec) IsZero() bool {
	return f.Start == nil && f.End == nil &&
		f.Course == "" && f.PaymentMethod == "" && f.Language == "" &&
		f.UTMCampaign == "" && f.EventType == "" && f.InquiryID == ""
}

// InWindow reports whether ts falls inside the spec's date window. A nil
// timestamp fails any date-bounded filter: when we cannot parse the source
// timestamp we cannot prove the record is in range. Both the ledger path
// and the event path route date decisions through here so the two can
// never diverge.
func (f *FilterSpec) InWindow(ts *time.Time) bool {
	if f.Start == nil && f.End == nil {
		return true
	}
	if ts == nil {
		return false
	}
	if f.Start != nil && ts.Before(*f.Start) {
		return false
	}
	if f.End != nil && ts.After(*f.End) {
		return false
	}
	return true
}

// CacheKey returns a deterministic serialization of the spec, with fields
// emitted in a fixed order so two logically identical specs always produce
// the same key.
func (f *FilterSpec) CacheKey() string {
	var b strings.Builder
	writeField := func(name, value string) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('|')
	}
	writeField("start", formatBound(f.Start))
	writeField("end", formatBound(f.End))
	writeField("course", f.Course)
	writeField("payment_method", f.PaymentMethod)
	writeField("language", f.Language)
	writeField("utm_campaign", f.UTMCampaign)
	writeField("event_type", f.EventType)
	writeField("inquiry_id", f.InquiryID)
	return b.String()
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%d", t.Unix())
}
