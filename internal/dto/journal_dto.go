package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReverseEntryRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

type JournalLineResponse struct {
	Account       string          `json:"account"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	ItemID        *string         `json:"item_id,omitempty"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   *string         `json:"reference_id,omitempty"`
}

type JournalEntryResponse struct {
	ID                  string                `json:"id"`
	Description         string                `json:"description"`
	SourceTransactionID *string               `json:"source_transaction_id,omitempty"`
	ReversesEntryID     *string               `json:"reverses_entry_id,omitempty"`
	PostedAt            time.Time             `json:"posted_at"`
	Lines               []JournalLineResponse `json:"lines"`
}
