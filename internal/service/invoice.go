package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lexpay-backend/internal/domain"
	"lexpay-backend/internal/logger"
	"lexpay-backend/internal/repository"
)

type invoiceService struct {
	store repository.Store
}

func NewInvoiceService(store repository.Store) InvoiceService {
	return &invoiceService{store: store}
}

// CreateInvoiceFromEntries builds an invoice from unbilled time and expense
// entries, marks those entries invoiced and computes totals, all in one unit
// of work. Selected entries that are already invoiced or deleted are dropped
// from the selection; only the remaining billable entries are billed, so
// reusing an entry can never double-bill it.
func (s *invoiceService) CreateInvoiceFromEntries(ctx context.Context, inv *domain.Invoice, sel EntrySelection) (*domain.Invoice, error) {
	if inv.MerchantID == "" || inv.ClientID == "" {
		return nil, fmt.Errorf("%w: merchant and client are required", domain.ErrValidation)
	}
	if len(sel.TimeEntryIDs) == 0 && len(sel.ExpenseEntryIDs) == 0 && sel.AutoCalculate {
		return nil, fmt.Errorf("%w: auto-calculation requires at least one entry", domain.ErrValidation)
	}

	now := time.Now()
	inv.ID = uuid.NewString()
	inv.Status = domain.InvoiceStatusDraft
	inv.AmountPaid = decimal.Zero
	inv.CreatedAt = now
	inv.UpdatedAt = now

	var billedTime, billedExpense []string
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		// The selection queries only return active, un-invoiced entries:
		// a reused or deleted entry simply drops out here, it is never
		// billed a second time.
		timeEntries, err := tx.Billing().ListUnbilledTimeEntries(ctx, inv.MerchantID, sel.TimeEntryIDs)
		if err != nil {
			return err
		}
		expenseEntries, err := tx.Billing().ListUnbilledExpenseEntries(ctx, inv.MerchantID, sel.ExpenseEntryIDs)
		if err != nil {
			return err
		}
		if dropped := len(sel.TimeEntryIDs) + len(sel.ExpenseEntryIDs) - len(timeEntries) - len(expenseEntries); dropped > 0 {
			logger.Warn("Dropping entries that are no longer billable",
				"invoice_id", inv.ID, "dropped", dropped)
		}
		if sel.AutoCalculate && len(timeEntries)+len(expenseEntries) == 0 {
			return fmt.Errorf("%w: no billable entries in selection", domain.ErrValidation)
		}

		billedTime = billedTime[:0]
		for _, e := range timeEntries {
			billedTime = append(billedTime, e.ID)
		}
		billedExpense = billedExpense[:0]
		for _, e := range expenseEntries {
			billedExpense = append(billedExpense, e.ID)
		}

		if sel.AutoCalculate {
			subtotal := decimal.Zero
			for _, e := range timeEntries {
				subtotal = subtotal.Add(e.BillableAmount())
			}
			for _, e := range expenseEntries {
				subtotal = subtotal.Add(e.BillableAmount())
			}
			inv.Subtotal = subtotal
		}
		inv.RecalculateTotals()

		if err := tx.Invoices().CreateInvoice(ctx, inv); err != nil {
			return err
		}
		if len(billedTime) > 0 {
			if err := tx.Billing().MarkTimeEntriesInvoiced(ctx, billedTime, inv.ID); err != nil {
				return err
			}
		}
		if len(billedExpense) > 0 {
			if err := tx.Billing().MarkExpenseEntriesInvoiced(ctx, billedExpense, inv.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Invoice created from entries",
		"invoice_id", inv.ID,
		"merchant_id", inv.MerchantID,
		"time_entries", len(billedTime),
		"expense_entries", len(billedExpense),
		"total", inv.TotalAmount.String())
	return inv, nil
}

// GetInvoiceEntries returns the time and expense entries folded into an
// invoice, for line-item reconciliation against the invoice total.
func (s *invoiceService) GetInvoiceEntries(ctx context.Context, invoiceID string) ([]domain.TimeEntry, []domain.ExpenseEntry, error) {
	if _, err := s.store.Invoices().GetInvoice(ctx, invoiceID); err != nil {
		return nil, nil, err
	}
	timeEntries, err := s.store.Billing().ListInvoiceTimeEntries(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	expenseEntries, err := s.store.Billing().ListInvoiceExpenseEntries(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	return timeEntries, expenseEntries, nil
}
