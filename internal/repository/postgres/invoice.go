package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lexpay-backend/internal/domain"
)

type invoiceRepository struct {
	q dbtx
}

const invoiceColumns = `id, merchant_id, client_id, invoice_number, subtotal, tax_rate, discount_rate,
	tax_amount, discount_amount, total_amount, amount_paid, balance_due, status,
	issue_date, due_date, created_at, updated_at`

func (r *invoiceRepository) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	query := `INSERT INTO invoices (` + invoiceColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.ExecContext(ctx, query,
		inv.ID, inv.MerchantID, inv.ClientID, inv.InvoiceNumber, inv.Subtotal, inv.TaxRate, inv.DiscountRate,
		inv.TaxAmount, inv.DiscountAmount, inv.TotalAmount, inv.AmountPaid, inv.BalanceDue, inv.Status,
		inv.IssueDate, inv.DueDate, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (r *invoiceRepository) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	var i domain.Invoice
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&i.ID, &i.MerchantID, &i.ClientID, &i.InvoiceNumber, &i.Subtotal, &i.TaxRate, &i.DiscountRate,
		&i.TaxAmount, &i.DiscountAmount, &i.TotalAmount, &i.AmountPaid, &i.BalanceDue, &i.Status,
		&i.IssueDate, &i.DueDate, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *invoiceRepository) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	query := `UPDATE invoices SET
	          subtotal = $2, tax_rate = $3, discount_rate = $4, tax_amount = $5, discount_amount = $6,
	          total_amount = $7, amount_paid = $8, balance_due = $9, status = $10, updated_at = NOW()
	          WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query,
		inv.ID, inv.Subtotal, inv.TaxRate, inv.DiscountRate, inv.TaxAmount, inv.DiscountAmount,
		inv.TotalAmount, inv.AmountPaid, inv.BalanceDue, inv.Status)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "invoice", inv.ID)
}
