package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lexpay-backend/internal/domain"
)

type paymentPlanRepository struct {
	q dbtx
}

const planColumns = `id, merchant_id, client_id, invoice_id, client_email, total_amount, remaining_balance,
	installment_amount, number_of_installments, installments_paid, frequency, start_date,
	next_payment_date, payment_method_id, auto_process, status, cancel_reason, created_at, updated_at`

func scanPlan(row interface{ Scan(...any) error }) (*domain.PaymentPlan, error) {
	var p domain.PaymentPlan
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.ClientID, &p.InvoiceID, &p.ClientEmail, &p.TotalAmount, &p.RemainingBalance,
		&p.InstallmentAmount, &p.NumberOfInstallments, &p.InstallmentsPaid, &p.Frequency, &p.StartDate,
		&p.NextPaymentDate, &p.PaymentMethodID, &p.AutoProcess, &p.Status, &p.CancelReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentPlanRepository) CreatePlan(ctx context.Context, plan *domain.PaymentPlan) error {
	query := `INSERT INTO payment_plans (` + planColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.q.ExecContext(ctx, query,
		plan.ID, plan.MerchantID, plan.ClientID, plan.InvoiceID, plan.ClientEmail, plan.TotalAmount, plan.RemainingBalance,
		plan.InstallmentAmount, plan.NumberOfInstallments, plan.InstallmentsPaid, plan.Frequency, plan.StartDate,
		plan.NextPaymentDate, plan.PaymentMethodID, plan.AutoProcess, plan.Status, plan.CancelReason, plan.CreatedAt, plan.UpdatedAt)
	return err
}

func (r *paymentPlanRepository) GetPlan(ctx context.Context, id string) (*domain.PaymentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans WHERE id = $1`
	p, err := scanPlan(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment plan %s", domain.ErrNotFound, id)
	}
	return p, err
}

func (r *paymentPlanRepository) UpdatePlan(ctx context.Context, plan *domain.PaymentPlan) error {
	query := `UPDATE payment_plans SET
	          client_email = $2, remaining_balance = $3, installments_paid = $4, next_payment_date = $5,
	          payment_method_id = $6, auto_process = $7, status = $8, cancel_reason = $9, updated_at = NOW()
	          WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query,
		plan.ID, plan.ClientEmail, plan.RemainingBalance, plan.InstallmentsPaid, plan.NextPaymentDate,
		plan.PaymentMethodID, plan.AutoProcess, plan.Status, plan.CancelReason)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "payment plan", plan.ID)
}

const installmentColumns = `id, plan_id, planned_date, amount, status, actual_date, gateway_transaction_id,
	retry_count, next_retry_date, failure_reason, cancel_reason, created_at, updated_at`

func scanInstallment(row interface{ Scan(...any) error }) (*domain.Installment, error) {
	var i domain.Installment
	var gatewayTxID, failureReason, cancelReason sql.NullString
	err := row.Scan(
		&i.ID, &i.PlanID, &i.PlannedDate, &i.Amount, &i.Status, &i.ActualDate, &gatewayTxID,
		&i.RetryCount, &i.NextRetryDate, &failureReason, &cancelReason, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.GatewayTransactionID = gatewayTxID.String
	i.FailureReason = failureReason.String
	i.CancelReason = cancelReason.String
	return &i, nil
}

func (r *paymentPlanRepository) CreateInstallment(ctx context.Context, inst *domain.Installment) error {
	query := `INSERT INTO plan_installments (` + installmentColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.ExecContext(ctx, query,
		inst.ID, inst.PlanID, inst.PlannedDate, inst.Amount, inst.Status, inst.ActualDate, nullable(inst.GatewayTransactionID),
		inst.RetryCount, inst.NextRetryDate, nullable(inst.FailureReason), nullable(inst.CancelReason), inst.CreatedAt, inst.UpdatedAt)
	return err
}

func (r *paymentPlanRepository) GetInstallment(ctx context.Context, id string) (*domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM plan_installments WHERE id = $1`
	i, err := scanInstallment(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: installment %s", domain.ErrNotFound, id)
	}
	return i, err
}

// UpdateInstallment only touches status and derived fields; planned date,
// amount and plan reference are immutable once created.
func (r *paymentPlanRepository) UpdateInstallment(ctx context.Context, inst *domain.Installment) error {
	query := `UPDATE plan_installments SET
	          status = $2, actual_date = $3, gateway_transaction_id = $4, retry_count = $5,
	          next_retry_date = $6, failure_reason = $7, cancel_reason = $8, updated_at = NOW()
	          WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query,
		inst.ID, inst.Status, inst.ActualDate, nullable(inst.GatewayTransactionID), inst.RetryCount,
		inst.NextRetryDate, nullable(inst.FailureReason), nullable(inst.CancelReason))
	if err != nil {
		return err
	}
	return requireRowAffected(res, "installment", inst.ID)
}

func (r *paymentPlanRepository) ClaimInstallment(ctx context.Context, id string, from, to domain.InstallmentStatus) error {
	query := `UPDATE plan_installments SET status = $3, updated_at = NOW()
	          WHERE id = $1 AND status = $2`
	res, err := r.q.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: installment %s is no longer %s", domain.ErrInvalidState, id, from)
	}
	return nil
}

func (r *paymentPlanRepository) ListInstallments(ctx context.Context, planID string) ([]domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM plan_installments
	          WHERE plan_id = $1 ORDER BY planned_date, created_at`
	rows, err := r.q.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstallments(rows)
}

func (r *paymentPlanRepository) ListDuePlans(ctx context.Context, merchantID string, asOf time.Time) ([]domain.PaymentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans
	          WHERE merchant_id = $1 AND status = $2 AND auto_process = TRUE
	            AND next_payment_date IS NOT NULL AND next_payment_date <= $3
	          ORDER BY next_payment_date`
	rows, err := r.q.QueryContext(ctx, query, merchantID, domain.PlanStatusActive, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.PaymentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (r *paymentPlanRepository) ListRetryableInstallments(ctx context.Context, merchantID string, asOf time.Time, maxRetries int) ([]domain.Installment, error) {
	query := `SELECT ` + installmentColumnsAliased + ` FROM plan_installments i
	          JOIN payment_plans p ON p.id = i.plan_id
	          WHERE p.merchant_id = $1 AND p.status = $2 AND i.status = $3
	            AND i.retry_count <= $4 AND i.next_retry_date IS NOT NULL AND i.next_retry_date <= $5
	          ORDER BY i.planned_date`
	rows, err := r.q.QueryContext(ctx, query,
		merchantID, domain.PlanStatusActive, domain.InstallmentStatusFailed, maxRetries, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstallments(rows)
}

func (r *paymentPlanRepository) ListMerchantsWithDuePlans(ctx context.Context, asOf time.Time) ([]string, error) {
	query := `SELECT DISTINCT merchant_id FROM payment_plans
	          WHERE status = $1 AND auto_process = TRUE
	            AND next_payment_date IS NOT NULL AND next_payment_date <= $2
	          ORDER BY merchant_id`
	return collectStrings(r.q.QueryContext(ctx, query, domain.PlanStatusActive, asOf))
}

func (r *paymentPlanRepository) ListMerchantsWithRetryableInstallments(ctx context.Context, asOf time.Time, maxRetries int) ([]string, error) {
	query := `SELECT DISTINCT p.merchant_id FROM plan_installments i
	          JOIN payment_plans p ON p.id = i.plan_id
	          WHERE p.status = $1 AND i.status = $2 AND i.retry_count <= $3
	            AND i.next_retry_date IS NOT NULL AND i.next_retry_date <= $4
	          ORDER BY p.merchant_id`
	return collectStrings(r.q.QueryContext(ctx, query,
		domain.PlanStatusActive, domain.InstallmentStatusFailed, maxRetries, asOf))
}

func collectInstallments(rows *sql.Rows) ([]domain.Installment, error) {
	var insts []domain.Installment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		insts = append(insts, *i)
	}
	return insts, rows.Err()
}

func collectStrings(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const installmentColumnsAliased = `i.id, i.plan_id, i.planned_date, i.amount, i.status, i.actual_date,
	i.gateway_transaction_id, i.retry_count, i.next_retry_date, i.failure_reason, i.cancel_reason,
	i.created_at, i.updated_at`

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
