package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "PENDING"
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

type InstallmentStatus string

const (
	InstallmentStatusScheduled  InstallmentStatus = "SCHEDULED"
	InstallmentStatusProcessing InstallmentStatus = "PROCESSING"
	InstallmentStatusCompleted  InstallmentStatus = "COMPLETED"
	InstallmentStatusFailed     InstallmentStatus = "FAILED"
	InstallmentStatusCancelled  InstallmentStatus = "CANCELLED"
)

// Frequency is the calendar interval between installments.
type Frequency string

const (
	FrequencyWeekly     Frequency = "WEEKLY"
	FrequencyBiweekly   Frequency = "BIWEEKLY"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiannual Frequency = "SEMIANNUAL"
	FrequencyAnnual     Frequency = "ANNUAL"
)

// Advance returns the next installment date after t. An unrecognized
// frequency advances by one calendar month.
func (f Frequency) Advance(t time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case FrequencySemiannual:
		return t.AddDate(0, 6, 0)
	case FrequencyAnnual:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// PaymentPlan turns a total amount owed into a concrete installment schedule.
// RemainingBalance always equals TotalAmount minus the sum of completed
// installment amounts; it is only ever mutated by payment processing.
type PaymentPlan struct {
	ID                   string          `json:"id"`
	MerchantID           string          `json:"merchant_id"`
	ClientID             string          `json:"client_id"`
	InvoiceID            *string         `json:"invoice_id,omitempty"`
	ClientEmail          string          `json:"client_email"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	RemainingBalance     decimal.Decimal `json:"remaining_balance"`
	InstallmentAmount    decimal.Decimal `json:"installment_amount"`
	NumberOfInstallments int             `json:"number_of_installments"`
	InstallmentsPaid     int             `json:"installments_paid"`
	Frequency            Frequency       `json:"frequency"`
	StartDate            time.Time       `json:"start_date"`
	NextPaymentDate      *time.Time      `json:"next_payment_date,omitempty"`
	PaymentMethodID      string          `json:"payment_method_id"`
	AutoProcess          bool            `json:"auto_process"`
	Status               PlanStatus      `json:"status"`
	CancelReason         string          `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Installment is one scheduled payment within a plan. Amount and PlanID are
// immutable once created; only status and derived fields are ever updated.
type Installment struct {
	ID                   string            `json:"id"`
	PlanID               string            `json:"plan_id"`
	PlannedDate          time.Time         `json:"planned_date"`
	Amount               decimal.Decimal   `json:"amount"`
	Status               InstallmentStatus `json:"status"`
	ActualDate           *time.Time        `json:"actual_date,omitempty"`
	GatewayTransactionID string            `json:"gateway_transaction_id,omitempty"`
	RetryCount           int               `json:"retry_count"`
	NextRetryDate        *time.Time        `json:"next_retry_date,omitempty"`
	FailureReason        string            `json:"failure_reason,omitempty"`
	CancelReason         string            `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// PlanUpdate carries the administratively correctable, non-financial fields
// of a plan. Balances and paid counts are deliberately absent: those move
// only through payment processing.
type PlanUpdate struct {
	ClientEmail     *string `json:"client_email,omitempty"`
	PaymentMethodID *string `json:"payment_method_id,omitempty"`
	AutoProcess     *bool   `json:"auto_process,omitempty"`
}

// SweepDetail describes the outcome for one plan touched by a sweep.
type SweepDetail struct {
	PlanID        string            `json:"plan_id"`
	InstallmentID string            `json:"installment_id"`
	Status        InstallmentStatus `json:"status"`
	Error         string            `json:"error,omitempty"`
}

// SweepResult aggregates one merchant's due-payment sweep.
type SweepResult struct {
	MerchantID string        `json:"merchant_id"`
	Processed  int           `json:"processed"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Details    []SweepDetail `json:"details"`
}
