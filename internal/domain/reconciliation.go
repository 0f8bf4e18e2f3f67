package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerDiscrepancy names one client ledger whose recorded balance does not
// match the signed sum of its transactions as of the report date.
type LedgerDiscrepancy struct {
	ClientLedgerID  string          `json:"client_ledger_id"`
	ClientID        string          `json:"client_id"`
	StatedBalance   decimal.Decimal `json:"stated_balance"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	Delta           decimal.Decimal `json:"delta"`
}

// ReconciliationReport compares a trust account's stated balance against the
// sum of its client ledgers. Mismatches are reported for human accounting
// review, never corrected by the engine.
type ReconciliationReport struct {
	ID              string              `json:"id"`
	TrustAccountID  string              `json:"trust_account_id"`
	AsOfDate        time.Time           `json:"as_of_date"`
	StatedBalance   decimal.Decimal     `json:"stated_balance"`
	ComputedBalance decimal.Decimal     `json:"computed_balance"`
	Delta           decimal.Decimal     `json:"delta"`
	Balanced        bool                `json:"balanced"`
	Discrepancies   []LedgerDiscrepancy `json:"discrepancies,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// Err returns nil for a balanced report, ErrReconciliationMismatch otherwise.
// Callers that treat an unbalanced account as a failure branch on this; the
// reconciliation itself never raises.
func (r *ReconciliationReport) Err() error {
	if r.Balanced {
		return nil
	}
	return fmt.Errorf("%w: trust account %s off by %s with %d ledger discrepancies",
		ErrReconciliationMismatch, r.TrustAccountID, r.Delta.String(), len(r.Discrepancies))
}
