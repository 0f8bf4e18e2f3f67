package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft          InvoiceStatus = "DRAFT"
	InvoiceStatusSent           InvoiceStatus = "SENT"
	InvoiceStatusPartialPayment InvoiceStatus = "PARTIAL_PAYMENT"
	InvoiceStatusPaid           InvoiceStatus = "PAID"
	InvoiceStatusPaymentPlan    InvoiceStatus = "PAYMENT_PLAN"
	InvoiceStatusFinancing      InvoiceStatus = "FINANCING"
	InvoiceStatusOverdue        InvoiceStatus = "OVERDUE"
	InvoiceStatusVoid           InvoiceStatus = "VOID"
)

// Invoice ties billable work to money collected. BalanceDue always equals
// TotalAmount minus AmountPaid.
type Invoice struct {
	ID             string          `json:"id"`
	MerchantID     string          `json:"merchant_id"`
	ClientID       string          `json:"client_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"`      // percent
	DiscountRate   decimal.Decimal `json:"discount_rate"` // percent
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
	Status         InvoiceStatus   `json:"status"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        time.Time       `json:"due_date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RecalculateTotals derives discount, tax, total and balance due from the
// subtotal and the configured rates. The discount applies to the subtotal;
// tax applies to the discounted amount. All arithmetic is exact decimal.
func (i *Invoice) RecalculateTotals() {
	hundred := decimal.NewFromInt(100)
	i.DiscountAmount = i.Subtotal.Mul(i.DiscountRate).Div(hundred).Round(2)
	taxable := i.Subtotal.Sub(i.DiscountAmount)
	i.TaxAmount = taxable.Mul(i.TaxRate).Div(hundred).Round(2)
	i.TotalAmount = taxable.Add(i.TaxAmount)
	i.BalanceDue = i.TotalAmount.Sub(i.AmountPaid)
}

// ApplyPayment records a received amount and moves the status to PAID when
// nothing remains due, PARTIAL_PAYMENT otherwise.
func (i *Invoice) ApplyPayment(amount decimal.Decimal) {
	i.AmountPaid = i.AmountPaid.Add(amount)
	i.BalanceDue = i.TotalAmount.Sub(i.AmountPaid)
	if i.BalanceDue.LessThanOrEqual(decimal.Zero) {
		i.Status = InvoiceStatusPaid
	} else {
		i.Status = InvoiceStatusPartialPayment
	}
}
