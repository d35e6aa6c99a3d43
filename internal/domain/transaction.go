package domain

import (
	"time"
)

// SourceTransaction is the record being reconciled, typically extracted
// from a receipt, email, or bank statement. It is input only and is never
// persisted by the engine.
type SourceTransaction struct {
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Date     time.Time `json:"date"`
	Vendor   string    `json:"vendor"`

	// Optional free-text description from the statement line
	Description string `json:"description,omitempty"`
}

// TargetTransaction is an existing ledger row being checked against a source.
type TargetTransaction struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenantId,omitempty"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Date     time.Time `json:"date"`
	Vendor   string    `json:"vendor"`

	Description string `json:"description,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`

	// Optional metadata carried from ingest
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// TransactionRequest is the API request payload for ledger ingest.
type TransactionRequest struct {
	Vendor      string                 `json:"vendor"`
	Amount      float64                `json:"amount"`
	Currency    string                 `json:"currency"`
	Date        string                 `json:"date"` // YYYY-MM-DD
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ToTarget converts a request to a TargetTransaction domain object.
func (r *TransactionRequest) ToTarget(id string, date time.Time) *TargetTransaction {
	return &TargetTransaction{
		ID:          id,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Date:        date,
		Vendor:      r.Vendor,
		Description: r.Description,
		CreatedAt:   time.Now().UTC(),
		Metadata:    r.Metadata,
	}
}
