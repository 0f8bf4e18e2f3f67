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

// financingGracePeriodDays is how long after approval the first monthly
// payment comes due.
const financingGracePeriodDays = 30

type financingService struct {
	store repository.Store
	email EmailService
}

func NewFinancingService(store repository.Store, email EmailService) FinancingService {
	return &financingService{store: store, email: email}
}

func (s *financingService) CreateApplication(ctx context.Context, app *domain.FinancingApplication) (*domain.FinancingApplication, error) {
	switch {
	case app.MerchantID == "" || app.ClientID == "":
		return nil, fmt.Errorf("%w: merchant and client are required", domain.ErrValidation)
	case app.TotalPaybackAmount.LessThanOrEqual(decimal.Zero):
		return nil, fmt.Errorf("%w: total payback amount must be positive", domain.ErrValidation)
	case app.TermMonths <= 0:
		return nil, fmt.Errorf("%w: term must be positive", domain.ErrValidation)
	}

	// The invoice reference is optional, but a referenced invoice must
	// exist before financing can be offered against it.
	if app.InvoiceID != nil {
		if _, err := s.store.Invoices().GetInvoice(ctx, *app.InvoiceID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	app.ID = uuid.NewString()
	app.MonthlyPayment = app.TotalPaybackAmount.Div(decimal.NewFromInt(int64(app.TermMonths))).Round(2)
	app.Status = domain.ApplicationStatusPending
	app.CreatedAt = now
	app.UpdatedAt = now

	if err := s.store.Financing().CreateApplication(ctx, app); err != nil {
		return nil, err
	}

	fields := []any{
		"application_id", app.ID,
		"payback", app.TotalPaybackAmount.String(),
		"term_months", app.TermMonths,
	}
	if app.InvoiceID != nil {
		fields = append(fields, "invoice_id", *app.InvoiceID)
	}
	logger.Info("Financing application created", fields...)
	return app, nil
}

// ApproveApplication moves the application to approved and creates the
// payback plan shell. The plan stays pending with no installments until the
// client supplies a payment method through ActivatePaymentPlan: the schedule
// cannot be generated before a charge target exists.
func (s *financingService) ApproveApplication(ctx context.Context, applicationID, approver string) (*domain.FinancingApplication, error) {
	var app *domain.FinancingApplication
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		app, err = tx.Financing().GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != domain.ApplicationStatusPending {
			return fmt.Errorf("%w: application %s is %s, not pending", domain.ErrInvalidState, applicationID, app.Status)
		}

		now := time.Now()
		start := now.AddDate(0, 0, financingGracePeriodDays)
		plan := &domain.PaymentPlan{
			ID:                   uuid.NewString(),
			MerchantID:           app.MerchantID,
			ClientID:             app.ClientID,
			InvoiceID:            app.InvoiceID,
			ClientEmail:          app.ClientEmail,
			TotalAmount:          app.TotalPaybackAmount,
			RemainingBalance:     app.TotalPaybackAmount,
			InstallmentAmount:    app.MonthlyPayment,
			NumberOfInstallments: app.TermMonths,
			Frequency:            domain.FrequencyMonthly,
			StartDate:            start,
			AutoProcess:          true,
			Status:               domain.PlanStatusPending,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.PaymentPlans().CreatePlan(ctx, plan); err != nil {
			return err
		}

		app.Status = domain.ApplicationStatusApproved
		app.PaymentPlanID = &plan.ID
		app.ApprovedBy = approver
		app.DecidedAt = &now
		if err := tx.Financing().UpdateApplication(ctx, app); err != nil {
			return err
		}

		if app.InvoiceID != nil {
			return setInvoiceStatus(ctx, tx, *app.InvoiceID, domain.InvoiceStatusFinancing)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Financing application approved",
		"application_id", app.ID,
		"plan_id", *app.PaymentPlanID,
		"approved_by", approver)

	s.notifyDecision(ctx, app, "approved",
		fmt.Sprintf("Your financing of %s over %d months was approved. The first payment of %s is due %s.",
			app.TotalPaybackAmount.StringFixed(2), app.TermMonths, app.MonthlyPayment.StringFixed(2),
			time.Now().AddDate(0, 0, financingGracePeriodDays).Format("January 2, 2006")))
	return app, nil
}

func (s *financingService) RejectApplication(ctx context.Context, applicationID, reason string) (*domain.FinancingApplication, error) {
	app, err := s.store.Financing().GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.ApplicationStatusPending {
		return nil, fmt.Errorf("%w: application %s is %s, not pending", domain.ErrInvalidState, applicationID, app.Status)
	}

	now := time.Now()
	app.Status = domain.ApplicationStatusRejected
	app.RejectionReason = reason
	app.DecidedAt = &now
	if err := s.store.Financing().UpdateApplication(ctx, app); err != nil {
		return nil, err
	}

	logger.Info("Financing application rejected", "application_id", app.ID, "reason", reason)
	s.notifyDecision(ctx, app, "rejected", reason)
	return app, nil
}

// ActivatePaymentPlan attaches the client's payment method to the approved
// plan, generates the monthly schedule from the deferred start date and
// moves both plan and application to active.
func (s *financingService) ActivatePaymentPlan(ctx context.Context, applicationID, paymentMethodID string) (*domain.PaymentPlan, error) {
	if paymentMethodID == "" {
		return nil, fmt.Errorf("%w: payment method is required", domain.ErrValidation)
	}

	var plan *domain.PaymentPlan
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		app, err := tx.Financing().GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != domain.ApplicationStatusApproved {
			return fmt.Errorf("%w: application %s is %s, not approved", domain.ErrInvalidState, applicationID, app.Status)
		}
		if app.PaymentPlanID == nil {
			return fmt.Errorf("%w: application %s has no payment plan", domain.ErrInvalidState, applicationID)
		}

		plan, err = tx.PaymentPlans().GetPlan(ctx, *app.PaymentPlanID)
		if err != nil {
			return err
		}
		if plan.Status != domain.PlanStatusPending {
			return fmt.Errorf("%w: plan %s is %s, not pending", domain.ErrInvalidState, plan.ID, plan.Status)
		}

		plan.PaymentMethodID = paymentMethodID
		plan.Status = domain.PlanStatusActive
		start := plan.StartDate
		plan.NextPaymentDate = &start
		if err := generateSchedule(ctx, tx, plan); err != nil {
			return err
		}
		if err := tx.PaymentPlans().UpdatePlan(ctx, plan); err != nil {
			return err
		}

		app.Status = domain.ApplicationStatusActive
		return tx.Financing().UpdateApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Financing plan activated",
		"application_id", applicationID,
		"plan_id", plan.ID,
		"installments", plan.NumberOfInstallments)
	return plan, nil
}

func (s *financingService) notifyDecision(ctx context.Context, app *domain.FinancingApplication, decision, detail string) {
	if s.email == nil || app.ClientEmail == "" {
		return
	}
	if err := s.email.SendFinancingDecisionNotice(ctx, app.ClientEmail, decision, detail); err != nil {
		logger.Error("Failed to send financing decision notice", "application_id", app.ID, "error", err)
	}
}
