package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryStatus string

const (
	EntryStatusActive   EntryStatus = "ACTIVE"
	EntryStatusInvoiced EntryStatus = "INVOICED"
	// EntryStatusDeleted is a soft tombstone; billable entries are never
	// physically removed.
	EntryStatusDeleted EntryStatus = "DELETED"
)

// TimeEntry is a unit of trackable work eligible to be folded into an
// invoice.
type TimeEntry struct {
	ID          string          `json:"id"`
	MerchantID  string          `json:"merchant_id"`
	ClientID    string          `json:"client_id"`
	Description string          `json:"description"`
	Hours       decimal.Decimal `json:"hours"`
	Rate        decimal.Decimal `json:"rate"`
	Status      EntryStatus     `json:"status"`
	InvoiceID   *string         `json:"invoice_id,omitempty"`
	WorkDate    time.Time       `json:"work_date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BillableAmount is hours times rate, rounded to cents.
func (t *TimeEntry) BillableAmount() decimal.Decimal {
	return t.Hours.Mul(t.Rate).Round(2)
}

// ExpenseEntry is a tracked cost eligible to be folded into an invoice,
// optionally marked up.
type ExpenseEntry struct {
	ID            string          `json:"id"`
	MerchantID    string          `json:"merchant_id"`
	ClientID      string          `json:"client_id"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	MarkupPercent decimal.Decimal `json:"markup_percent"`
	Status        EntryStatus     `json:"status"`
	InvoiceID     *string         `json:"invoice_id,omitempty"`
	ExpenseDate   time.Time       `json:"expense_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BillableAmount is the expense amount with markup applied, rounded to cents.
func (e *ExpenseEntry) BillableAmount() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return e.Amount.Mul(hundred.Add(e.MarkupPercent)).Div(hundred).Round(2)
}
