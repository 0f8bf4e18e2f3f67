package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lexpay-backend/internal/domain"
)

type TrustRepository interface {
	CreateTrustAccount(ctx context.Context, account *domain.TrustAccount) error
	GetTrustAccount(ctx context.Context, id string) (*domain.TrustAccount, error)
	ListTrustAccounts(ctx context.Context) ([]domain.TrustAccount, error)
	UpdateTrustAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error

	CreateClientLedger(ctx context.Context, ledger *domain.ClientLedger) error
	GetClientLedger(ctx context.Context, id string) (*domain.ClientLedger, error)
	ListClientLedgers(ctx context.Context, trustAccountID string) ([]domain.ClientLedger, error)
	UpdateClientLedgerBalance(ctx context.Context, id string, balance decimal.Decimal) error

	// Transactions are append-only; there is deliberately no update or
	// delete. Corrections are new offsetting transactions.
	CreateTransaction(ctx context.Context, tx *domain.TrustTransaction) error
	ListTransactions(ctx context.Context, clientLedgerID string, from, to time.Time) ([]domain.TrustTransaction, error)
	SumTransactions(ctx context.Context, clientLedgerID string, asOf time.Time) (decimal.Decimal, error)

	SaveReconciliationReport(ctx context.Context, report *domain.ReconciliationReport) error
}

type PaymentPlanRepository interface {
	CreatePlan(ctx context.Context, plan *domain.PaymentPlan) error
	GetPlan(ctx context.Context, id string) (*domain.PaymentPlan, error)
	UpdatePlan(ctx context.Context, plan *domain.PaymentPlan) error

	CreateInstallment(ctx context.Context, inst *domain.Installment) error
	GetInstallment(ctx context.Context, id string) (*domain.Installment, error)
	UpdateInstallment(ctx context.Context, inst *domain.Installment) error
	// ClaimInstallment transitions the installment's status only if it still
	// holds the expected one, failing with ErrInvalidState otherwise. Two
	// concurrent collectors cannot both claim the same installment.
	ClaimInstallment(ctx context.Context, id string, from, to domain.InstallmentStatus) error
	// ListInstallments returns a plan's installments in planned-date order.
	ListInstallments(ctx context.Context, planID string) ([]domain.Installment, error)

	// ListDuePlans returns a merchant's active, auto-process plans whose
	// next payment date is at or before asOf.
	ListDuePlans(ctx context.Context, merchantID string, asOf time.Time) ([]domain.PaymentPlan, error)
	// ListRetryableInstallments returns failed installments of the
	// merchant's active plans whose retry date has arrived and whose retry
	// count has not exceeded maxRetries.
	ListRetryableInstallments(ctx context.Context, merchantID string, asOf time.Time, maxRetries int) ([]domain.Installment, error)
	ListMerchantsWithDuePlans(ctx context.Context, asOf time.Time) ([]string, error)
	ListMerchantsWithRetryableInstallments(ctx context.Context, asOf time.Time, maxRetries int) ([]string, error)
}

type FinancingRepository interface {
	CreateApplication(ctx context.Context, app *domain.FinancingApplication) error
	GetApplication(ctx context.Context, id string) (*domain.FinancingApplication, error)
	UpdateApplication(ctx context.Context, app *domain.FinancingApplication) error
}

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *domain.Invoice) error
}

type BillingRepository interface {
	CreateTimeEntry(ctx context.Context, entry *domain.TimeEntry) error
	CreateExpenseEntry(ctx context.Context, entry *domain.ExpenseEntry) error

	// The unbilled listers only consider ACTIVE entries with no invoice
	// linked, so entries already folded into an invoice are excluded by
	// construction.
	ListUnbilledTimeEntries(ctx context.Context, merchantID string, ids []string) ([]domain.TimeEntry, error)
	ListUnbilledExpenseEntries(ctx context.Context, merchantID string, ids []string) ([]domain.ExpenseEntry, error)

	MarkTimeEntriesInvoiced(ctx context.Context, ids []string, invoiceID string) error
	MarkExpenseEntriesInvoiced(ctx context.Context, ids []string, invoiceID string) error

	ListInvoiceTimeEntries(ctx context.Context, invoiceID string) ([]domain.TimeEntry, error)
	ListInvoiceExpenseEntries(ctx context.Context, invoiceID string) ([]domain.ExpenseEntry, error)
}

// Store bundles the repositories behind one handle and scopes units of work.
// Every state transition touching more than one entity runs inside WithinTx:
// the closure either commits as a whole or leaves no trace.
type Store interface {
	Trust() TrustRepository
	PaymentPlans() PaymentPlanRepository
	Financing() FinancingRepository
	Invoices() InvoiceRepository
	Billing() BillingRepository

	WithinTx(ctx context.Context, fn func(s Store) error) error
}
