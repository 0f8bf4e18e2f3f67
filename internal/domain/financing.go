package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING_APPLICATION"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
	ApplicationStatusActive   ApplicationStatus = "ACTIVE"
)

// FinancingApplication is a request to convert an outstanding balance into a
// multi-month payment plan, subject to an approval step. Approval creates a
// pending plan; activation attaches a payment method and generates the
// installment schedule.
type FinancingApplication struct {
	ID                 string            `json:"id"`
	MerchantID         string            `json:"merchant_id"`
	ClientID           string            `json:"client_id"`
	InvoiceID          *string           `json:"invoice_id,omitempty"`
	ClientEmail        string            `json:"client_email"`
	TotalPaybackAmount decimal.Decimal   `json:"total_payback_amount"`
	MonthlyPayment     decimal.Decimal   `json:"monthly_payment"`
	TermMonths         int               `json:"term_months"`
	Status             ApplicationStatus `json:"status"`
	PaymentPlanID      *string           `json:"payment_plan_id,omitempty"`
	ApprovedBy         string            `json:"approved_by,omitempty"`
	RejectionReason    string            `json:"rejection_reason,omitempty"`
	DecidedAt          *time.Time        `json:"decided_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}
