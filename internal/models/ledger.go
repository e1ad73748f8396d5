package models

import "time"

// Lead statuses after ingestion-time normalization.
const (
	StatusPaid     = "paid"
	StatusPending  = "pending"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Payment methods after ingestion-time normalization.
const (
	PaymentCashplus     = "cashplus"
	PaymentCard         = "card"
	PaymentCash         = "cash"
	PaymentBankTransfer = "bank_transfer"
	PaymentOther        = "other"
)

// LedgerRecord is a denormalized snapshot of one lead/payment row from the
// spreadsheet ledger. Only the ledger package may construct these: status,
// payment method, course and amounts are normalized exactly once at
// ingestion so every downstream consumer compares with plain equality.
type LedgerRecord struct {
	// Timestamp is nil when the source cell could not be parsed. Records
	// without a timestamp are excluded from any date-bounded filter.
	Timestamp *time.Time `json:"timestamp"`

	InquiryID     string `json:"inquiry_id"`
	TransactionID string `json:"transaction_id"`

	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`

	// Amount and FinalAmount are in MAD. FinalAmount carries the price
	// after any discount; zero means no discounted price was recorded.
	Amount      float64 `json:"amount"`
	FinalAmount float64 `json:"final_amount"`

	// Course is the raw trimmed text, NormalizedCourse the canonical name.
	Course           string `json:"course"`
	NormalizedCourse string `json:"normalized_course"`

	Language string `json:"language"`

	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`

	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
}

// RevenueAmount returns the amount used for revenue aggregation: the
// discounted final amount when one was recorded, otherwise the list amount.
func (r *LedgerRecord) RevenueAmount() float64 {
	if r.FinalAmount != 0 {
		return r.FinalAmount
	}
	return r.Amount
}

// IsPaid reports whether the record represents settled revenue.
func (r *LedgerRecord) IsPaid() bool {
	return r.Status == StatusPaid
}
