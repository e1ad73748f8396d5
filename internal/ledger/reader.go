package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/models"
)

// Header names as the spreadsheet exports them. Lookup also tries the
// lowercase snake_case variant, since the proxy lowercases headers on
// some deployments.
const (
	colTimestamp     = "timestamp"
	colInquiryID     = "inquiry_id"
	colTransactionID = "transaction_id"
	colStatus        = "status"
	colPaymentMethod = "payment_method"
	colAmount        = "amount"
	colFinalAmount   = "final_amount"
	colCourse        = "course"
	colLanguage      = "language"
	colName          = "name"
	colEmail         = "email"
	colPhone         = "phone"
	colUTMSource     = "utm_source"
	colUTMMedium     = "utm_medium"
	colUTMCampaign   = "utm_campaign"
	colUTMContent    = "utm_content"
	colUTMTerm       = "utm_term"
)

// defaultLanguage is the fallback for ledger rows; the enrollment form
// defaults to French.
const defaultLanguage = "fr"

// Reader owns the mapping from raw spreadsheet rows to LedgerRecord. No
// other component may construct records directly.
type Reader struct {
	source RowSource
	logger *zap.Logger
}

// NewReader constructs a Reader over the given row source.
func NewReader(source RowSource, logger *zap.Logger) *Reader {
	return &Reader{source: source, logger: logger}
}

// FetchAll fetches the current ledger snapshot and normalizes every row.
// A single malformed row never fails the call: bad numbers coerce to 0,
// bad dates to nil, missing text to its declared default. An unreachable
// collaborator fails the whole call with UpstreamError.
func (r *Reader) FetchAll(ctx context.Context) ([]models.LedgerRecord, error) {
	rows, err := r.source.FetchRows(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]models.LedgerRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, normalizeRow(row))
	}

	r.logger.Debug("normalized ledger records", zap.Int("count", len(records)))
	return records, nil
}

func normalizeRow(row map[string]string) models.LedgerRecord {
	course := cell(row, colCourse)
	return models.LedgerRecord{
		Timestamp:        ParseDate(cell(row, colTimestamp)),
		InquiryID:        cell(row, colInquiryID),
		TransactionID:    cell(row, colTransactionID),
		Status:           NormalizeStatus(cell(row, colStatus)),
		PaymentMethod:    NormalizePaymentMethod(cell(row, colPaymentMethod)),
		Amount:           ParseAmount(cell(row, colAmount)),
		FinalAmount:      ParseAmount(cell(row, colFinalAmount)),
		Course:           course,
		NormalizedCourse: NormalizeCourse(course),
		Language:         NormalizeLanguage(cell(row, colLanguage), defaultLanguage),
		Name:             cell(row, colName),
		Email:            cell(row, colEmail),
		Phone:            cell(row, colPhone),
		UTMSource:        cell(row, colUTMSource),
		UTMMedium:        cell(row, colUTMMedium),
		UTMCampaign:      cell(row, colUTMCampaign),
		UTMContent:       cell(row, colUTMContent),
		UTMTerm:          cell(row, colUTMTerm),
	}
}

func cell(row map[string]string, key string) string {
	if v, ok := row[key]; ok {
		return v
	}
	// Some proxy deployments keep the original "Title Case" headers.
	for k, v := range row {
		if equalFoldKey(k, key) {
			return v
		}
	}
	return ""
}

func equalFoldKey(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca == ' ' {
			ca = '_'
		}
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
