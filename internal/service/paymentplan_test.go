package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpay-backend/internal/domain"
	"lexpay-backend/internal/repository/memory"
)

type planFixture struct {
	store   *memory.Store
	gateway *fakeGateway
	email   *fakeEmail
	svc     PaymentPlanService
}

func newPlanFixture(t *testing.T) *planFixture {
	t.Helper()
	store := memory.NewStore()
	gw := &fakeGateway{}
	email := &fakeEmail{}
	return &planFixture{
		store:   store,
		gateway: gw,
		email:   email,
		svc:     NewPaymentPlanService(store, gw, email),
	}
}

func (f *planFixture) seedInvoice(t *testing.T, total int64) *domain.Invoice {
	t.Helper()
	inv := &domain.Invoice{
		ID:         "inv-1",
		MerchantID: "merchant-1",
		ClientID:   "client-1",
		Subtotal:   decimal.NewFromInt(total),
		AmountPaid: decimal.Zero,
		Status:     domain.InvoiceStatusSent,
	}
	inv.RecalculateTotals()
	require.NoError(t, f.store.Invoices().CreateInvoice(context.Background(), inv))
	return inv
}

func monthlyPlan(start time.Time) *domain.PaymentPlan {
	return &domain.PaymentPlan{
		MerchantID:           "merchant-1",
		ClientID:             "client-1",
		ClientEmail:          "client@example.com",
		TotalAmount:          decimal.NewFromInt(3000),
		InstallmentAmount:    decimal.NewFromInt(500),
		NumberOfInstallments: 6,
		Frequency:            domain.FrequencyMonthly,
		StartDate:            start,
		PaymentMethodID:      "pm-1",
		AutoProcess:          true,
	}
}

func TestCreatePaymentPlan(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Generates the full monthly schedule", func(t *testing.T) {
		f := newPlanFixture(t)

		plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
		require.NoError(t, err)

		assert.Equal(t, domain.PlanStatusActive, plan.Status)
		assert.True(t, plan.RemainingBalance.Equal(decimal.NewFromInt(3000)))
		assert.Equal(t, 0, plan.InstallmentsPaid)
		require.NotNil(t, plan.NextPaymentDate)
		assert.Equal(t, start, *plan.NextPaymentDate)

		installments, err := f.svc.ListInstallments(ctx, plan.ID)
		require.NoError(t, err)
		require.Len(t, installments, 6)
		for i, inst := range installments {
			assert.Equal(t, start.AddDate(0, i, 0), inst.PlannedDate)
			assert.Equal(t, domain.InstallmentStatusScheduled, inst.Status)
			assert.True(t, inst.Amount.Equal(decimal.NewFromInt(500)))
		}
	})

	t.Run("Linked invoice moves to PAYMENT_PLAN", func(t *testing.T) {
		f := newPlanFixture(t)
		inv := f.seedInvoice(t, 3000)

		req := monthlyPlan(start)
		req.InvoiceID = &inv.ID
		_, err := f.svc.CreatePaymentPlan(ctx, req)
		require.NoError(t, err)

		got, err := f.store.Invoices().GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusPaymentPlan, got.Status)
	})

	t.Run("Rejects non-positive amounts", func(t *testing.T) {
		f := newPlanFixture(t)
		req := monthlyPlan(start)
		req.TotalAmount = decimal.Zero
		_, err := f.svc.CreatePaymentPlan(ctx, req)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestProcessScheduledPayment(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Successful charge completes the installment", func(t *testing.T) {
		f := newPlanFixture(t)
		inv := f.seedInvoice(t, 3000)
		req := monthlyPlan(start)
		req.InvoiceID = &inv.ID
		plan, err := f.svc.CreatePaymentPlan(ctx, req)
		require.NoError(t, err)
		installments, _ := f.svc.ListInstallments(ctx, plan.ID)

		inst, err := f.svc.ProcessScheduledPayment(ctx, installments[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentStatusCompleted, inst.Status)
		assert.NotEmpty(t, inst.GatewayTransactionID)
		require.NotNil(t, inst.ActualDate)

		gotPlan, _ := f.svc.GetPaymentPlan(ctx, plan.ID)
		assert.Equal(t, 1, gotPlan.InstallmentsPaid)
		assert.True(t, gotPlan.RemainingBalance.Equal(decimal.NewFromInt(2500)))
		require.NotNil(t, gotPlan.NextPaymentDate)
		assert.Equal(t, start.AddDate(0, 1, 0), *gotPlan.NextPaymentDate)

		gotInv, _ := f.store.Invoices().GetInvoice(ctx, inv.ID)
		assert.Equal(t, domain.InvoiceStatusPartialPayment, gotInv.Status)
		assert.True(t, gotInv.BalanceDue.Equal(decimal.NewFromInt(2500)))

		// Idempotency key carries the installment identity.
		require.Len(t, f.gateway.requests, 1)
		assert.Equal(t, inst.ID, f.gateway.requests[0].IdempotencyKey)
	})

	t.Run("Reprocessing a completed installment is a no-op", func(t *testing.T) {
		f := newPlanFixture(t)
		plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
		require.NoError(t, err)
		installments, _ := f.svc.ListInstallments(ctx, plan.ID)

		_, err = f.svc.ProcessScheduledPayment(ctx, installments[0].ID)
		require.NoError(t, err)
		inst, err := f.svc.ProcessScheduledPayment(ctx, installments[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentStatusCompleted, inst.Status)
		assert.Len(t, f.gateway.requests, 1, "no second charge")
	})

	t.Run("Declined charge records failure as data", func(t *testing.T) {
		f := newPlanFixture(t)
		f.gateway.declineNext("card_declined", "insufficient funds on card")
		plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
		require.NoError(t, err)
		installments, _ := f.svc.ListInstallments(ctx, plan.ID)

		inst, err := f.svc.ProcessScheduledPayment(ctx, installments[0].ID)
		require.NoError(t, err, "a decline is an outcome, not an error")
		assert.Equal(t, domain.InstallmentStatusFailed, inst.Status)
		assert.Equal(t, 1, inst.RetryCount)
		assert.Equal(t, "insufficient funds on card", inst.FailureReason)
		require.NotNil(t, inst.NextRetryDate)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), *inst.NextRetryDate, time.Minute)

		// The plan stays active with its counters untouched.
		gotPlan, _ := f.svc.GetPaymentPlan(ctx, plan.ID)
		assert.Equal(t, domain.PlanStatusActive, gotPlan.Status)
		assert.Equal(t, 0, gotPlan.InstallmentsPaid)
		assert.True(t, gotPlan.RemainingBalance.Equal(decimal.NewFromInt(3000)))

		assert.Equal(t, []string{"client@example.com"}, f.email.failureNotices)
	})

	t.Run("Later installment is blocked by an earlier one", func(t *testing.T) {
		f := newPlanFixture(t)
		plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
		require.NoError(t, err)
		installments, _ := f.svc.ListInstallments(ctx, plan.ID)

		_, err = f.svc.ProcessScheduledPayment(ctx, installments[1].ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Empty(t, f.gateway.requests)
	})

	t.Run("Earlier failure with exhausted retries no longer blocks", func(t *testing.T) {
		f := newPlanFixture(t)
		f.gateway.declineNext("card_declined", "insufficient funds on card")
		plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
		require.NoError(t, err)
		installments, _ := f.svc.ListInstallments(ctx, plan.ID)

		failed, err := f.svc.ProcessScheduledPayment(ctx, installments[0].ID)
		require.NoError(t, err)
		require.Equal(t, domain.InstallmentStatusFailed, failed.Status)

		// Still retryable: the next installment stays blocked.
		_, err = f.svc.ProcessScheduledPayment(ctx, installments[1].ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		failed.RetryCount = defaultMaxRetries
		require.NoError(t, f.store.PaymentPlans().UpdateInstallment(ctx, failed))

		inst, err := f.svc.ProcessScheduledPayment(ctx, installments[1].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentStatusCompleted, inst.Status)
	})

	t.Run("Final installment completes the plan", func(t *testing.T) {
		f := newPlanFixture(t)
		inv := f.seedInvoice(t, 3000)
		req := monthlyPlan(start)
		req.InvoiceID = &inv.ID
		plan, err := f.svc.CreatePaymentPlan(ctx, req)
		require.NoError(t, err)
		installments, _ := f.svc.ListInstallments(ctx, plan.ID)

		for _, inst := range installments {
			_, err := f.svc.ProcessScheduledPayment(ctx, inst.ID)
			require.NoError(t, err)
		}

		gotPlan, _ := f.svc.GetPaymentPlan(ctx, plan.ID)
		assert.Equal(t, domain.PlanStatusCompleted, gotPlan.Status)
		assert.Equal(t, 6, gotPlan.InstallmentsPaid)
		assert.True(t, gotPlan.RemainingBalance.IsZero())
		assert.Nil(t, gotPlan.NextPaymentDate)

		gotInv, _ := f.store.Invoices().GetInvoice(ctx, inv.ID)
		assert.Equal(t, domain.InvoiceStatusPaid, gotInv.Status)
		assert.True(t, gotInv.BalanceDue.IsZero())

		assert.Equal(t, []string{"client@example.com"}, f.email.completedNotices)
	})

	t.Run("Cancelled plan cannot be processed", func(t *testing.T) {
		f := newPlanFixture(t)
		plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
		require.NoError(t, err)
		require.NoError(t, f.svc.CancelPaymentPlan(ctx, plan.ID, "client request"))

		installments, _ := f.svc.ListInstallments(ctx, plan.ID)
		_, err = f.svc.ProcessScheduledPayment(ctx, installments[0].ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestClaimInstallment_OnlyOneCollectorWins(t *testing.T) {
	ctx := context.Background()
	f := newPlanFixture(t)
	plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	installments, _ := f.svc.ListInstallments(ctx, plan.ID)

	repo := f.store.PaymentPlans()
	require.NoError(t, repo.ClaimInstallment(ctx, installments[0].ID,
		domain.InstallmentStatusScheduled, domain.InstallmentStatusProcessing))

	// The second collector read the installment as scheduled but loses the
	// swap and backs off.
	err = repo.ClaimInstallment(ctx, installments[0].ID,
		domain.InstallmentStatusScheduled, domain.InstallmentStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRetryFailedPayments(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f := newPlanFixture(t)
	f.gateway.declineNext("card_declined", "expired card")

	plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
	require.NoError(t, err)
	installments, _ := f.svc.ListInstallments(ctx, plan.ID)

	failed, err := f.svc.ProcessScheduledPayment(ctx, installments[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.InstallmentStatusFailed, failed.Status)

	// Next day the retry sweep picks it up and the charge goes through.
	result, err := f.svc.RetryFailedPayments(ctx, "merchant-1", time.Now().Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 0, result.Failed)

	inst, err := f.store.PaymentPlans().GetInstallment(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentStatusCompleted, inst.Status)
	assert.Empty(t, inst.FailureReason)

	gotPlan, _ := f.svc.GetPaymentPlan(ctx, plan.ID)
	assert.Equal(t, 1, gotPlan.InstallmentsPaid)
}

func TestProcessDuePayments(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f := newPlanFixture(t)

	plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
	require.NoError(t, err)

	t.Run("Collects only the due installment", func(t *testing.T) {
		result, err := f.svc.ProcessDuePayments(ctx, "merchant-1", start.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Successful)
		require.Len(t, result.Details, 1)
		assert.Equal(t, plan.ID, result.Details[0].PlanID)
		assert.Equal(t, domain.InstallmentStatusCompleted, result.Details[0].Status)
		assert.Len(t, f.gateway.requests, 1)
	})

	t.Run("Nothing due means nothing processed", func(t *testing.T) {
		result, err := f.svc.ProcessDuePayments(ctx, "merchant-1", start.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
		assert.Len(t, f.gateway.requests, 1, "no extra charges")
	})
}

func TestCancelPaymentPlan(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f := newPlanFixture(t)

	plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
	require.NoError(t, err)
	installments, _ := f.svc.ListInstallments(ctx, plan.ID)

	// Collect the first two, then cancel.
	for _, inst := range installments[:2] {
		_, err := f.svc.ProcessScheduledPayment(ctx, inst.ID)
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.CancelPaymentPlan(ctx, plan.ID, "matter settled"))

	gotPlan, _ := f.svc.GetPaymentPlan(ctx, plan.ID)
	assert.Equal(t, domain.PlanStatusCancelled, gotPlan.Status)
	assert.Equal(t, "matter settled", gotPlan.CancelReason)
	assert.Nil(t, gotPlan.NextPaymentDate)
	// Cancellation is not retroactive.
	assert.Equal(t, 2, gotPlan.InstallmentsPaid)
	assert.True(t, gotPlan.RemainingBalance.Equal(decimal.NewFromInt(2000)))

	got, _ := f.svc.ListInstallments(ctx, plan.ID)
	for i, inst := range got {
		if i < 2 {
			assert.Equal(t, domain.InstallmentStatusCompleted, inst.Status)
		} else {
			assert.Equal(t, domain.InstallmentStatusCancelled, inst.Status)
			assert.Equal(t, "matter settled", inst.CancelReason)
		}
	}

	t.Run("Cancelling twice is rejected", func(t *testing.T) {
		err := f.svc.CancelPaymentPlan(ctx, plan.ID, "again")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestUpdatePaymentPlan(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f := newPlanFixture(t)

	plan, err := f.svc.CreatePaymentPlan(ctx, monthlyPlan(start))
	require.NoError(t, err)

	newEmail := "updated@example.com"
	newMethod := "pm-2"
	auto := false
	updated, err := f.svc.UpdatePaymentPlan(ctx, plan.ID, domain.PlanUpdate{
		ClientEmail:     &newEmail,
		PaymentMethodID: &newMethod,
		AutoProcess:     &auto,
	})
	require.NoError(t, err)
	assert.Equal(t, newEmail, updated.ClientEmail)
	assert.Equal(t, newMethod, updated.PaymentMethodID)
	assert.False(t, updated.AutoProcess)
	// Financial fields are untouched.
	assert.True(t, updated.RemainingBalance.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, 0, updated.InstallmentsPaid)
}
