package ledger

import (
	"strconv"
	"strings"
	"time"

	"github.com/atlasformation/funnel-engine/internal/models"
)

// Normalization is applied exactly once, here, at the ingestion boundary.
// Everything downstream compares normalized values with plain equality.

// NormalizeCourse maps free-text course names onto the canonical set by
// substring matching. Unrecognized non-empty values pass through trimmed,
// so the function is idempotent; empty input becomes "Other".
func NormalizeCourse(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "Other"
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "pmp"):
		return "PMP"
	case strings.Contains(lower, "planning"):
		return "Planning"
	case strings.Contains(lower, "qse"):
		return "QSE"
	case strings.Contains(lower, "soft"):
		return "Soft Skills"
	default:
		return trimmed
	}
}

// dateLayouts are tried in order. The sheet mixes ISO timestamps with the
// dd/mm/yyyy format the manual-entry form produces.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseDate parses a ledger timestamp cell. It returns nil, not "now",
// when the cell cannot be parsed: a fabricated timestamp would silently
// pull the record into date-bounded reports.
func ParseDate(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t
		}
	}
	return nil
}

// ParseAmount parses a MAD amount cell, tolerating currency suffixes,
// thousands separators and decimal commas. Malformed input coerces to 0.
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return 0
	}
	for _, suffix := range []string{"mad", "dh", "dhs"} {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	// "1.250,50" and "1,250.50" both appear in the sheet.
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	} else if strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// NormalizeStatus folds a status cell into the closed status set,
// defaulting to pending for missing or unrecognized values.
func NormalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.StatusPaid:
		return models.StatusPaid
	case models.StatusFailed:
		return models.StatusFailed
	case models.StatusCanceled, "cancelled":
		return models.StatusCanceled
	default:
		return models.StatusPending
	}
}

// NormalizePaymentMethod maps the free-text payment method cell onto the
// canonical set by substring and alias matching. The source data is not a
// closed enum; anything unrecognized lands in "other".
func NormalizePaymentMethod(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return models.PaymentOther
	case strings.Contains(s, "cashplus") || strings.Contains(s, "cash plus"):
		return models.PaymentCashplus
	case strings.Contains(s, "card") || strings.Contains(s, "carte") || strings.Contains(s, "cmi"):
		return models.PaymentCard
	case strings.Contains(s, "virement") || strings.Contains(s, "bank") || strings.Contains(s, "transfer"):
		return models.PaymentBankTransfer
	case strings.Contains(s, "cash") || strings.Contains(s, "espece") || strings.Contains(s, "espèce"):
		return models.PaymentCash
	default:
		return models.PaymentOther
	}
}

// NormalizeLanguage folds a language cell into ar/fr/en, defaulting to
// def. The default varies by call site, so it is explicit here.
func NormalizeLanguage(raw, def string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ar", "arabic", "arabe":
		return "ar"
	case "fr", "french", "français", "francais":
		return "fr"
	case "en", "english", "anglais":
		return "en"
	default:
		return def
	}
}
