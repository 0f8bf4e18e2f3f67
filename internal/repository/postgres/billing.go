package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"lexpay-backend/internal/domain"
)

type billingRepository struct {
	q dbtx
}

const timeEntryColumns = `id, merchant_id, client_id, description, hours, rate, status, invoice_id,
	work_date, created_at, updated_at`

const expenseEntryColumns = `id, merchant_id, client_id, description, amount, markup_percent, status, invoice_id,
	expense_date, created_at, updated_at`

func (r *billingRepository) CreateTimeEntry(ctx context.Context, entry *domain.TimeEntry) error {
	query := `INSERT INTO time_entries (` + timeEntryColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.ExecContext(ctx, query,
		entry.ID, entry.MerchantID, entry.ClientID, entry.Description, entry.Hours, entry.Rate,
		entry.Status, entry.InvoiceID, entry.WorkDate, entry.CreatedAt, entry.UpdatedAt)
	return err
}

func (r *billingRepository) CreateExpenseEntry(ctx context.Context, entry *domain.ExpenseEntry) error {
	query := `INSERT INTO expense_entries (` + expenseEntryColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.ExecContext(ctx, query,
		entry.ID, entry.MerchantID, entry.ClientID, entry.Description, entry.Amount, entry.MarkupPercent,
		entry.Status, entry.InvoiceID, entry.ExpenseDate, entry.CreatedAt, entry.UpdatedAt)
	return err
}

// ListUnbilledTimeEntries only considers ACTIVE entries with no invoice
// linked: selecting an already-invoiced entry is a silent no-op, never a
// double bill.
func (r *billingRepository) ListUnbilledTimeEntries(ctx context.Context, merchantID string, ids []string) ([]domain.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries
	          WHERE merchant_id = $1 AND id = ANY($2) AND status = $3 AND invoice_id IS NULL
	          ORDER BY work_date`
	rows, err := r.q.QueryContext(ctx, query, merchantID, pq.Array(ids), domain.EntryStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTimeEntries(rows)
}

func (r *billingRepository) ListUnbilledExpenseEntries(ctx context.Context, merchantID string, ids []string) ([]domain.ExpenseEntry, error) {
	query := `SELECT ` + expenseEntryColumns + ` FROM expense_entries
	          WHERE merchant_id = $1 AND id = ANY($2) AND status = $3 AND invoice_id IS NULL
	          ORDER BY expense_date`
	rows, err := r.q.QueryContext(ctx, query, merchantID, pq.Array(ids), domain.EntryStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenseEntries(rows)
}

func (r *billingRepository) MarkTimeEntriesInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	query := `UPDATE time_entries SET status = $1, invoice_id = $2, updated_at = NOW()
	          WHERE id = ANY($3) AND status = $4 AND invoice_id IS NULL`
	_, err := r.q.ExecContext(ctx, query,
		domain.EntryStatusInvoiced, invoiceID, pq.Array(ids), domain.EntryStatusActive)
	return err
}

func (r *billingRepository) MarkExpenseEntriesInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	query := `UPDATE expense_entries SET status = $1, invoice_id = $2, updated_at = NOW()
	          WHERE id = ANY($3) AND status = $4 AND invoice_id IS NULL`
	_, err := r.q.ExecContext(ctx, query,
		domain.EntryStatusInvoiced, invoiceID, pq.Array(ids), domain.EntryStatusActive)
	return err
}

func (r *billingRepository) ListInvoiceTimeEntries(ctx context.Context, invoiceID string) ([]domain.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE invoice_id = $1 ORDER BY work_date`
	rows, err := r.q.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTimeEntries(rows)
}

func (r *billingRepository) ListInvoiceExpenseEntries(ctx context.Context, invoiceID string) ([]domain.ExpenseEntry, error) {
	query := `SELECT ` + expenseEntryColumns + ` FROM expense_entries WHERE invoice_id = $1 ORDER BY expense_date`
	rows, err := r.q.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExpenseEntries(rows)
}

func collectTimeEntries(rows *sql.Rows) ([]domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	for rows.Next() {
		var e domain.TimeEntry
		if err := rows.Scan(&e.ID, &e.MerchantID, &e.ClientID, &e.Description, &e.Hours, &e.Rate,
			&e.Status, &e.InvoiceID, &e.WorkDate, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func collectExpenseEntries(rows *sql.Rows) ([]domain.ExpenseEntry, error) {
	var entries []domain.ExpenseEntry
	for rows.Next() {
		var e domain.ExpenseEntry
		if err := rows.Scan(&e.ID, &e.MerchantID, &e.ClientID, &e.Description, &e.Amount, &e.MarkupPercent,
			&e.Status, &e.InvoiceID, &e.ExpenseDate, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
