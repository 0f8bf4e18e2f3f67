package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lexpay-backend/internal/domain"
)

type TrustLedgerService interface {
	CreateTrustAccount(ctx context.Context, merchantID, currency string) (*domain.TrustAccount, error)
	CreateClientLedger(ctx context.Context, merchantID, trustAccountID, clientID, clientName string) (*domain.ClientLedger, error)
	RecordTransaction(ctx context.Context, clientLedgerID string, amount decimal.Decimal, txType domain.TrustTransactionType, description, createdBy string, documentID *string) (*domain.TrustTransaction, error)
	TransferFunds(ctx context.Context, fromLedgerID, toLedgerID string, amount decimal.Decimal, createdBy string) error
	GetClientLedgerStatement(ctx context.Context, clientLedgerID string, from, to time.Time) ([]domain.TrustTransaction, error)
	GetTrustAccountLedgers(ctx context.Context, trustAccountID string) ([]domain.ClientLedger, error)
	ReconcileTrustAccount(ctx context.Context, trustAccountID string, asOf time.Time) (*domain.ReconciliationReport, error)
}

type PaymentPlanService interface {
	CreatePaymentPlan(ctx context.Context, plan *domain.PaymentPlan) (*domain.PaymentPlan, error)
	GetPaymentPlan(ctx context.Context, planID string) (*domain.PaymentPlan, error)
	ListInstallments(ctx context.Context, planID string) ([]domain.Installment, error)
	ProcessScheduledPayment(ctx context.Context, installmentID string) (*domain.Installment, error)
	ProcessDuePayments(ctx context.Context, merchantID string, asOf time.Time) (*domain.SweepResult, error)
	RetryFailedPayments(ctx context.Context, merchantID string, asOf time.Time) (*domain.SweepResult, error)
	CancelPaymentPlan(ctx context.Context, planID, reason string) error
	UpdatePaymentPlan(ctx context.Context, planID string, update domain.PlanUpdate) (*domain.PaymentPlan, error)
}

type FinancingService interface {
	CreateApplication(ctx context.Context, app *domain.FinancingApplication) (*domain.FinancingApplication, error)
	ApproveApplication(ctx context.Context, applicationID, approver string) (*domain.FinancingApplication, error)
	RejectApplication(ctx context.Context, applicationID, reason string) (*domain.FinancingApplication, error)
	ActivatePaymentPlan(ctx context.Context, applicationID, paymentMethodID string) (*domain.PaymentPlan, error)
}

type InvoiceService interface {
	CreateInvoiceFromEntries(ctx context.Context, inv *domain.Invoice, sel EntrySelection) (*domain.Invoice, error)
	GetInvoiceEntries(ctx context.Context, invoiceID string) ([]domain.TimeEntry, []domain.ExpenseEntry, error)
}

// EntrySelection names the billable entries to fold into a new invoice.
// When AutoCalculate is set the subtotal is derived from the entries;
// otherwise the caller-supplied subtotal is trusted.
type EntrySelection struct {
	TimeEntryIDs    []string
	ExpenseEntryIDs []string
	AutoCalculate   bool
}

type EmailService interface {
	SendPaymentFailureNotice(ctx context.Context, email string, amount decimal.Decimal, reason string, nextRetry time.Time) error
	SendPlanCompletedNotice(ctx context.Context, email string, totalPaid decimal.Decimal) error
	SendFinancingDecisionNotice(ctx context.Context, email, decision, detail string) error
}
