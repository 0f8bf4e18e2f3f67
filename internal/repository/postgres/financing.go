package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lexpay-backend/internal/domain"
)

type financingRepository struct {
	q dbtx
}

const applicationColumns = `id, merchant_id, client_id, invoice_id, client_email, total_payback_amount,
	monthly_payment, term_months, status, payment_plan_id, approved_by, rejection_reason,
	decided_at, created_at, updated_at`

func (r *financingRepository) CreateApplication(ctx context.Context, app *domain.FinancingApplication) error {
	query := `INSERT INTO financing_applications (` + applicationColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.ExecContext(ctx, query,
		app.ID, app.MerchantID, app.ClientID, app.InvoiceID, app.ClientEmail, app.TotalPaybackAmount,
		app.MonthlyPayment, app.TermMonths, app.Status, app.PaymentPlanID, nullable(app.ApprovedBy),
		nullable(app.RejectionReason), app.DecidedAt, app.CreatedAt, app.UpdatedAt)
	return err
}

func (r *financingRepository) GetApplication(ctx context.Context, id string) (*domain.FinancingApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM financing_applications WHERE id = $1`
	var a domain.FinancingApplication
	var approvedBy, rejectionReason sql.NullString
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.MerchantID, &a.ClientID, &a.InvoiceID, &a.ClientEmail, &a.TotalPaybackAmount,
		&a.MonthlyPayment, &a.TermMonths, &a.Status, &a.PaymentPlanID, &approvedBy,
		&rejectionReason, &a.DecidedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: financing application %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	a.ApprovedBy = approvedBy.String
	a.RejectionReason = rejectionReason.String
	return &a, nil
}

func (r *financingRepository) UpdateApplication(ctx context.Context, app *domain.FinancingApplication) error {
	query := `UPDATE financing_applications SET
	          status = $2, payment_plan_id = $3, approved_by = $4, rejection_reason = $5,
	          decided_at = $6, updated_at = NOW()
	          WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query,
		app.ID, app.Status, app.PaymentPlanID, nullable(app.ApprovedBy), nullable(app.RejectionReason), app.DecidedAt)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "financing application", app.ID)
}
