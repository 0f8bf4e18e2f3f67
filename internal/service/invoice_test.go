package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpay-backend/internal/domain"
	"lexpay-backend/internal/repository/memory"
)

func seedTimeEntry(t *testing.T, store *memory.Store, hours, rate float64) *domain.TimeEntry {
	t.Helper()
	entry := &domain.TimeEntry{
		ID:         uuid.NewString(),
		MerchantID: "merchant-1",
		ClientID:   "client-1",
		Hours:      decimal.NewFromFloat(hours),
		Rate:       decimal.NewFromFloat(rate),
		Status:     domain.EntryStatusActive,
		WorkDate:   time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Billing().CreateTimeEntry(context.Background(), entry))
	return entry
}

func seedExpenseEntry(t *testing.T, store *memory.Store, amount, markup float64) *domain.ExpenseEntry {
	t.Helper()
	entry := &domain.ExpenseEntry{
		ID:            uuid.NewString(),
		MerchantID:    "merchant-1",
		ClientID:      "client-1",
		Amount:        decimal.NewFromFloat(amount),
		MarkupPercent: decimal.NewFromFloat(markup),
		Status:        domain.EntryStatusActive,
		ExpenseDate:   time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Billing().CreateExpenseEntry(context.Background(), entry))
	return entry
}

func TestCreateInvoiceFromEntries(t *testing.T) {
	ctx := context.Background()

	t.Run("Auto-calculates the subtotal and marks entries invoiced", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewInvoiceService(store)
		te := seedTimeEntry(t, store, 2, 350)     // 700.00
		ee := seedExpenseEntry(t, store, 100, 10) // 110.00

		inv, err := svc.CreateInvoiceFromEntries(ctx, &domain.Invoice{
			MerchantID: "merchant-1",
			ClientID:   "client-1",
			TaxRate:    decimal.NewFromInt(10),
		}, EntrySelection{
			TimeEntryIDs:    []string{te.ID},
			ExpenseEntryIDs: []string{ee.ID},
			AutoCalculate:   true,
		})
		require.NoError(t, err)

		assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(810)), "subtotal: %s", inv.Subtotal)
		assert.True(t, inv.TaxAmount.Equal(decimal.NewFromInt(81)))
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(891)))
		assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)

		timeEntries, expenseEntries, err := svc.GetInvoiceEntries(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, timeEntries, 1)
		require.Len(t, expenseEntries, 1)
		assert.Equal(t, domain.EntryStatusInvoiced, timeEntries[0].Status)
		require.NotNil(t, timeEntries[0].InvoiceID)
		assert.Equal(t, inv.ID, *timeEntries[0].InvoiceID)
	})

	t.Run("An already invoiced entry is dropped, not billed again", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewInvoiceService(store)
		used := seedTimeEntry(t, store, 1, 300)

		first, err := svc.CreateInvoiceFromEntries(ctx, &domain.Invoice{
			MerchantID: "merchant-1",
			ClientID:   "client-1",
		}, EntrySelection{TimeEntryIDs: []string{used.ID}, AutoCalculate: true})
		require.NoError(t, err)

		// Selecting the used entry again bills only the fresh one.
		fresh := seedTimeEntry(t, store, 2, 250) // 500.00
		second, err := svc.CreateInvoiceFromEntries(ctx, &domain.Invoice{
			MerchantID: "merchant-1",
			ClientID:   "client-1",
		}, EntrySelection{TimeEntryIDs: []string{used.ID, fresh.ID}, AutoCalculate: true})
		require.NoError(t, err)
		assert.True(t, second.Subtotal.Equal(decimal.NewFromInt(500)), "subtotal: %s", second.Subtotal)

		timeEntries, _, err := svc.GetInvoiceEntries(ctx, second.ID)
		require.NoError(t, err)
		require.Len(t, timeEntries, 1)
		assert.Equal(t, fresh.ID, timeEntries[0].ID)

		// The used entry stays linked to its original invoice.
		gotUsed, err := store.Billing().ListInvoiceTimeEntries(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, gotUsed, 1)
		assert.Equal(t, used.ID, gotUsed[0].ID)
	})

	t.Run("A selection with nothing left to bill is rejected", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewInvoiceService(store)
		used := seedTimeEntry(t, store, 1, 300)

		_, err := svc.CreateInvoiceFromEntries(ctx, &domain.Invoice{
			MerchantID: "merchant-1",
			ClientID:   "client-1",
		}, EntrySelection{TimeEntryIDs: []string{used.ID}, AutoCalculate: true})
		require.NoError(t, err)

		_, err = svc.CreateInvoiceFromEntries(ctx, &domain.Invoice{
			MerchantID: "merchant-1",
			ClientID:   "client-1",
		}, EntrySelection{TimeEntryIDs: []string{used.ID}, AutoCalculate: true})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Caller-supplied subtotal without auto-calculation", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewInvoiceService(store)
		te := seedTimeEntry(t, store, 2, 350)

		inv, err := svc.CreateInvoiceFromEntries(ctx, &domain.Invoice{
			MerchantID: "merchant-1",
			ClientID:   "client-1",
			Subtotal:   decimal.NewFromInt(650),
		}, EntrySelection{TimeEntryIDs: []string{te.ID}})
		require.NoError(t, err)
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(650)))
	})

	t.Run("Auto-calculation with no entries is rejected", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewInvoiceService(store)
		_, err := svc.CreateInvoiceFromEntries(ctx, &domain.Invoice{
			MerchantID: "merchant-1",
			ClientID:   "client-1",
		}, EntrySelection{AutoCalculate: true})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
