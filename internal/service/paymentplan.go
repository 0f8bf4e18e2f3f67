package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lexpay-backend/internal/domain"
	"lexpay-backend/internal/gateway"
	"lexpay-backend/internal/logger"
	"lexpay-backend/internal/repository"
)

const defaultMaxRetries = 3

// retryDelay is how long a failed installment waits before the retry sweep
// picks it up again.
const retryDelay = 24 * time.Hour

type paymentPlanService struct {
	store      repository.Store
	gateway    gateway.Gateway
	email      EmailService
	maxRetries int
}

func NewPaymentPlanService(store repository.Store, gw gateway.Gateway, email EmailService) PaymentPlanService {
	return &paymentPlanService{
		store:      store,
		gateway:    gw,
		email:      email,
		maxRetries: defaultMaxRetries,
	}
}

// CreatePaymentPlan validates the plan, generates the full installment
// schedule up front and activates the plan. Plans created through the
// financing approval path do not come through here: that path defers
// schedule generation until a payment method exists.
func (s *paymentPlanService) CreatePaymentPlan(ctx context.Context, plan *domain.PaymentPlan) (*domain.PaymentPlan, error) {
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	now := time.Now()
	plan.ID = uuid.NewString()
	plan.RemainingBalance = plan.TotalAmount
	plan.InstallmentsPaid = 0
	plan.Status = domain.PlanStatusActive
	start := plan.StartDate
	plan.NextPaymentDate = &start
	plan.CreatedAt = now
	plan.UpdatedAt = now

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.PaymentPlans().CreatePlan(ctx, plan); err != nil {
			return err
		}
		if err := generateSchedule(ctx, tx, plan); err != nil {
			return err
		}
		if plan.InvoiceID != nil {
			return setInvoiceStatus(ctx, tx, *plan.InvoiceID, domain.InvoiceStatusPaymentPlan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Payment plan created",
		"plan_id", plan.ID,
		"merchant_id", plan.MerchantID,
		"total", plan.TotalAmount.String(),
		"installments", plan.NumberOfInstallments)
	return plan, nil
}

func validatePlan(plan *domain.PaymentPlan) error {
	switch {
	case plan.MerchantID == "" || plan.ClientID == "":
		return fmt.Errorf("%w: merchant and client are required", domain.ErrValidation)
	case plan.TotalAmount.LessThanOrEqual(decimal.Zero):
		return fmt.Errorf("%w: total amount must be positive", domain.ErrValidation)
	case plan.InstallmentAmount.LessThanOrEqual(decimal.Zero):
		return fmt.Errorf("%w: installment amount must be positive", domain.ErrValidation)
	case plan.NumberOfInstallments <= 0:
		return fmt.Errorf("%w: number of installments must be positive", domain.ErrValidation)
	case plan.StartDate.IsZero():
		return fmt.Errorf("%w: start date is required", domain.ErrValidation)
	}
	return nil
}

// generateSchedule creates one scheduled installment per period, advancing
// the start date by the plan frequency's calendar interval.
func generateSchedule(ctx context.Context, tx repository.Store, plan *domain.PaymentPlan) error {
	now := time.Now()
	date := plan.StartDate
	for i := 0; i < plan.NumberOfInstallments; i++ {
		inst := &domain.Installment{
			ID:          uuid.NewString(),
			PlanID:      plan.ID,
			PlannedDate: date,
			Amount:      plan.InstallmentAmount,
			Status:      domain.InstallmentStatusScheduled,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.PaymentPlans().CreateInstallment(ctx, inst); err != nil {
			return err
		}
		date = plan.Frequency.Advance(date)
	}
	return nil
}

func (s *paymentPlanService) GetPaymentPlan(ctx context.Context, planID string) (*domain.PaymentPlan, error) {
	return s.store.PaymentPlans().GetPlan(ctx, planID)
}

func (s *paymentPlanService) ListInstallments(ctx context.Context, planID string) ([]domain.Installment, error) {
	return s.store.PaymentPlans().ListInstallments(ctx, planID)
}

// ProcessScheduledPayment attempts to collect one scheduled installment.
// Re-invoking it on an installment already processing or completed is a
// no-op, never a second charge: the gateway call is keyed by installment ID.
func (s *paymentPlanService) ProcessScheduledPayment(ctx context.Context, installmentID string) (*domain.Installment, error) {
	inst, err := s.store.PaymentPlans().GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}

	switch inst.Status {
	case domain.InstallmentStatusProcessing, domain.InstallmentStatusCompleted:
		return inst, nil
	case domain.InstallmentStatusScheduled:
		// proceed
	default:
		return nil, fmt.Errorf("%w: installment %s is %s, not scheduled", domain.ErrInvalidState, installmentID, inst.Status)
	}

	return s.collect(ctx, inst, false)
}

// collect runs the shared charge flow for scheduled installments and failed
// retries. allowFailed permits the failed->processing retry edge.
func (s *paymentPlanService) collect(ctx context.Context, inst *domain.Installment, allowFailed bool) (*domain.Installment, error) {
	plan, err := s.store.PaymentPlans().GetPlan(ctx, inst.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanStatusActive {
		return nil, fmt.Errorf("%w: plan %s is %s, not active", domain.ErrInvalidState, plan.ID, plan.Status)
	}

	// Installments are collected strictly in planned-date order: an earlier
	// installment still awaiting collection blocks every later one.
	siblings, err := s.store.PaymentPlans().ListInstallments(ctx, inst.PlanID)
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		if sib.ID == inst.ID {
			break
		}
		switch sib.Status {
		case domain.InstallmentStatusScheduled, domain.InstallmentStatusProcessing:
			return nil, fmt.Errorf("%w: installment %s blocked by earlier installment %s (%s)",
				domain.ErrInvalidState, inst.ID, sib.ID, sib.Status)
		case domain.InstallmentStatusFailed:
			// A failed sibling blocks only while the retry sweep can still
			// pick it up; once its retries are exhausted the plan moves on.
			if !allowFailed && sib.RetryCount < s.maxRetries {
				return nil, fmt.Errorf("%w: installment %s blocked by earlier failed installment %s",
					domain.ErrInvalidState, inst.ID, sib.ID)
			}
		}
	}

	// Claim the installment before calling out. The claim is a
	// compare-and-swap on the current status, so of two concurrent
	// collectors only one reaches the gateway; the other loses the claim
	// and backs off without a second charge.
	if err := s.store.PaymentPlans().ClaimInstallment(ctx, inst.ID, inst.Status, domain.InstallmentStatusProcessing); err != nil {
		return nil, err
	}
	inst.Status = domain.InstallmentStatusProcessing

	result, err := s.gateway.Charge(ctx, gateway.ChargeRequest{
		Amount:          inst.Amount,
		Currency:        "USD",
		PaymentMethodID: plan.PaymentMethodID,
		MerchantID:      plan.MerchantID,
		Description:     fmt.Sprintf("Installment %d of %d, plan %s", plan.InstallmentsPaid+1, plan.NumberOfInstallments, plan.ID),
		IdempotencyKey:  inst.ID,
		Metadata:        chargeMetadata(plan),
	})
	if err != nil {
		// Transport failure: the gateway may or may not have settled the
		// charge. The idempotency key makes the retry safe.
		return s.recordFailure(ctx, inst, plan, fmt.Sprintf("gateway unreachable: %v", err))
	}
	if !result.Success {
		reason := result.ErrorMessage
		if reason == "" {
			reason = result.ErrorCode
		}
		return s.recordFailure(ctx, inst, plan, reason)
	}

	return s.recordSuccess(ctx, inst, plan, result.TransactionID)
}

func chargeMetadata(plan *domain.PaymentPlan) map[string]string {
	md := map[string]string{
		"plan_id":   plan.ID,
		"client_id": plan.ClientID,
	}
	if plan.InvoiceID != nil {
		md["invoice_id"] = *plan.InvoiceID
	}
	return md
}

// recordSuccess finalizes a collected installment: installment, plan
// counters and any linked invoice all move in one unit of work.
func (s *paymentPlanService) recordSuccess(ctx context.Context, inst *domain.Installment, plan *domain.PaymentPlan, gatewayTxID string) (*domain.Installment, error) {
	now := time.Now()

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		inst.Status = domain.InstallmentStatusCompleted
		inst.ActualDate = &now
		inst.GatewayTransactionID = gatewayTxID
		inst.FailureReason = ""
		inst.NextRetryDate = nil
		if err := tx.PaymentPlans().UpdateInstallment(ctx, inst); err != nil {
			return err
		}

		plan.InstallmentsPaid++
		plan.RemainingBalance = plan.RemainingBalance.Sub(inst.Amount)

		siblings, err := tx.PaymentPlans().ListInstallments(ctx, plan.ID)
		if err != nil {
			return err
		}
		plan.NextPaymentDate = nextScheduledDate(siblings)

		if plan.InstallmentsPaid >= plan.NumberOfInstallments {
			plan.Status = domain.PlanStatusCompleted
			plan.NextPaymentDate = nil
		}
		if err := tx.PaymentPlans().UpdatePlan(ctx, plan); err != nil {
			return err
		}

		if plan.InvoiceID != nil {
			inv, err := tx.Invoices().GetInvoice(ctx, *plan.InvoiceID)
			if err != nil {
				return err
			}
			inv.ApplyPayment(inst.Amount)
			if err := tx.Invoices().UpdateInvoice(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Installment collected",
		"installment_id", inst.ID,
		"plan_id", plan.ID,
		"amount", inst.Amount.String(),
		"installments_paid", plan.InstallmentsPaid)

	if plan.Status == domain.PlanStatusCompleted && s.email != nil && plan.ClientEmail != "" {
		if err := s.email.SendPlanCompletedNotice(ctx, plan.ClientEmail, plan.TotalAmount); err != nil {
			logger.Error("Failed to send plan completion notice", "plan_id", plan.ID, "error", err)
		}
	}
	return inst, nil
}

// recordFailure marks the installment failed with retry metadata and leaves
// the plan active for the next sweep. The failure is data, not an error.
func (s *paymentPlanService) recordFailure(ctx context.Context, inst *domain.Installment, plan *domain.PaymentPlan, reason string) (*domain.Installment, error) {
	nextRetry := time.Now().Add(retryDelay)

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		inst.Status = domain.InstallmentStatusFailed
		inst.RetryCount++
		inst.NextRetryDate = &nextRetry
		inst.FailureReason = reason
		return tx.PaymentPlans().UpdateInstallment(ctx, inst)
	})
	if err != nil {
		return nil, err
	}

	logger.Warn("Installment charge failed",
		"installment_id", inst.ID,
		"plan_id", plan.ID,
		"retry_count", inst.RetryCount,
		"reason", reason)

	if s.email != nil && plan.ClientEmail != "" {
		if err := s.email.SendPaymentFailureNotice(ctx, plan.ClientEmail, inst.Amount, reason, nextRetry); err != nil {
			logger.Error("Failed to send payment failure notice", "plan_id", plan.ID, "error", err)
		}
	}
	return inst, nil
}

func nextScheduledDate(installments []domain.Installment) *time.Time {
	for _, i := range installments {
		if i.Status == domain.InstallmentStatusScheduled {
			d := i.PlannedDate
			return &d
		}
	}
	return nil
}

// ProcessDuePayments sweeps one merchant's due plans, collecting the
// earliest due installment of each. A failure on one plan never aborts the
// rest of the sweep.
func (s *paymentPlanService) ProcessDuePayments(ctx context.Context, merchantID string, asOf time.Time) (*domain.SweepResult, error) {
	plans, err := s.store.PaymentPlans().ListDuePlans(ctx, merchantID, asOf)
	if err != nil {
		return nil, err
	}

	result := &domain.SweepResult{MerchantID: merchantID}
	for _, plan := range plans {
		installments, err := s.store.PaymentPlans().ListInstallments(ctx, plan.ID)
		if err != nil {
			result.Details = append(result.Details, domain.SweepDetail{PlanID: plan.ID, Error: err.Error()})
			continue
		}

		var due *domain.Installment
		for idx := range installments {
			inst := &installments[idx]
			if inst.Status == domain.InstallmentStatusScheduled && !inst.PlannedDate.After(asOf) {
				due = inst
				break
			}
		}
		if due == nil {
			continue
		}

		result.Processed++
		processed, err := s.ProcessScheduledPayment(ctx, due.ID)
		if err != nil {
			result.Failed++
			result.Details = append(result.Details, domain.SweepDetail{
				PlanID:        plan.ID,
				InstallmentID: due.ID,
				Error:         err.Error(),
			})
			logger.Error("Sweep failed for plan", "plan_id", plan.ID, "error", err)
			continue
		}

		detail := domain.SweepDetail{
			PlanID:        plan.ID,
			InstallmentID: processed.ID,
			Status:        processed.Status,
		}
		if processed.Status == domain.InstallmentStatusCompleted {
			result.Successful++
		} else {
			result.Failed++
			detail.Error = processed.FailureReason
		}
		result.Details = append(result.Details, detail)
	}
	return result, nil
}

// RetryFailedPayments reprocesses failed installments whose retry date has
// arrived, walking the failed->processing edge of the installment state
// machine.
func (s *paymentPlanService) RetryFailedPayments(ctx context.Context, merchantID string, asOf time.Time) (*domain.SweepResult, error) {
	retryable, err := s.store.PaymentPlans().ListRetryableInstallments(ctx, merchantID, asOf, s.maxRetries)
	if err != nil {
		return nil, err
	}

	result := &domain.SweepResult{MerchantID: merchantID}
	for idx := range retryable {
		inst := &retryable[idx]
		result.Processed++

		processed, err := s.collect(ctx, inst, true)
		if err != nil {
			result.Failed++
			result.Details = append(result.Details, domain.SweepDetail{
				PlanID:        inst.PlanID,
				InstallmentID: inst.ID,
				Error:         err.Error(),
			})
			logger.Error("Retry failed for installment", "installment_id", inst.ID, "error", err)
			continue
		}

		detail := domain.SweepDetail{
			PlanID:        inst.PlanID,
			InstallmentID: processed.ID,
			Status:        processed.Status,
		}
		if processed.Status == domain.InstallmentStatusCompleted {
			result.Successful++
		} else {
			result.Failed++
			detail.Error = processed.FailureReason
		}
		result.Details = append(result.Details, detail)
	}
	return result, nil
}

// CancelPaymentPlan cancels the plan and every still-scheduled installment
// in one unit of work. Processing and completed installments are untouched:
// cancellation is not retroactive.
func (s *paymentPlanService) CancelPaymentPlan(ctx context.Context, planID, reason string) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		plan, err := tx.PaymentPlans().GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if plan.Status == domain.PlanStatusCompleted || plan.Status == domain.PlanStatusCancelled {
			return fmt.Errorf("%w: plan %s is already %s", domain.ErrInvalidState, planID, plan.Status)
		}

		plan.Status = domain.PlanStatusCancelled
		plan.CancelReason = reason
		plan.NextPaymentDate = nil
		if err := tx.PaymentPlans().UpdatePlan(ctx, plan); err != nil {
			return err
		}

		installments, err := tx.PaymentPlans().ListInstallments(ctx, planID)
		if err != nil {
			return err
		}
		for idx := range installments {
			inst := &installments[idx]
			if inst.Status != domain.InstallmentStatusScheduled {
				continue
			}
			inst.Status = domain.InstallmentStatusCancelled
			inst.CancelReason = reason
			if err := tx.PaymentPlans().UpdateInstallment(ctx, inst); err != nil {
				return err
			}
		}

		logger.Info("Payment plan cancelled", "plan_id", planID, "reason", reason)
		return nil
	})
}

// UpdatePaymentPlan applies administrative corrections. Financial fields are
// not reachable from PlanUpdate: balances and paid counts only move through
// payment processing.
func (s *paymentPlanService) UpdatePaymentPlan(ctx context.Context, planID string, update domain.PlanUpdate) (*domain.PaymentPlan, error) {
	var updated *domain.PaymentPlan
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		plan, err := tx.PaymentPlans().GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if update.ClientEmail != nil {
			plan.ClientEmail = *update.ClientEmail
		}
		if update.PaymentMethodID != nil {
			plan.PaymentMethodID = *update.PaymentMethodID
		}
		if update.AutoProcess != nil {
			plan.AutoProcess = *update.AutoProcess
		}
		if err := tx.PaymentPlans().UpdatePlan(ctx, plan); err != nil {
			return err
		}
		updated = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// setInvoiceStatus flips an invoice's status inside an enclosing unit of
// work; used when a plan or financing arrangement takes over collection.
func setInvoiceStatus(ctx context.Context, tx repository.Store, invoiceID string, status domain.InvoiceStatus) error {
	inv, err := tx.Invoices().GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	inv.Status = status
	return tx.Invoices().UpdateInvoice(ctx, inv)
}
