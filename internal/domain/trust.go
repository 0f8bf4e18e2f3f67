package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TrustTransactionType string

const (
	TrustTransactionTypeDeposit      TrustTransactionType = "DEPOSIT"
	TrustTransactionTypeDisbursement TrustTransactionType = "DISBURSEMENT"
	TrustTransactionTypeTransfer     TrustTransactionType = "TRANSFER"
)

// TrustAccount is a pooled IOLTA-style account holding multiple clients'
// funds. Its balance must always equal the sum of its client ledger balances.
type TrustAccount struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchant_id"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ClientLedger is a per-client sub-balance within a trust account. Its
// balance equals the signed sum of its transactions and never goes negative.
type ClientLedger struct {
	ID             string          `json:"id"`
	TrustAccountID string          `json:"trust_account_id"`
	ClientID       string          `json:"client_id"`
	ClientName     string          `json:"client_name"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TrustTransaction is an immutable ledger entry. Amount is signed: deposits
// and incoming transfers are positive, disbursements and outgoing transfers
// negative. Corrections are new offsetting transactions, never edits.
type TrustTransaction struct {
	ID             string               `json:"id"`
	ClientLedgerID string               `json:"client_ledger_id"`
	Amount         decimal.Decimal      `json:"amount"`
	Type           TrustTransactionType `json:"type"`
	Description    string               `json:"description"`
	CreatedBy      string               `json:"created_by"`
	DocumentID     *string              `json:"document_id,omitempty"` // opaque reference, bytes never read here
	CreatedAt      time.Time            `json:"created_at"`
}
