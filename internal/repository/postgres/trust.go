package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lexpay-backend/internal/domain"
)

type trustRepository struct {
	q dbtx
}

func (r *trustRepository) CreateTrustAccount(ctx context.Context, account *domain.TrustAccount) error {
	query := `INSERT INTO trust_accounts (id, merchant_id, currency, balance, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		account.ID, account.MerchantID, account.Currency, account.Balance, account.CreatedAt, account.UpdatedAt)
	return err
}

func (r *trustRepository) GetTrustAccount(ctx context.Context, id string) (*domain.TrustAccount, error) {
	query := `SELECT id, merchant_id, currency, balance, created_at, updated_at
	          FROM trust_accounts WHERE id = $1`
	var a domain.TrustAccount
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.MerchantID, &a.Currency, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: trust account %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *trustRepository) ListTrustAccounts(ctx context.Context) ([]domain.TrustAccount, error) {
	query := `SELECT id, merchant_id, currency, balance, created_at, updated_at
	          FROM trust_accounts ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.TrustAccount
	for rows.Next() {
		var a domain.TrustAccount
		if err := rows.Scan(&a.ID, &a.MerchantID, &a.Currency, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *trustRepository) UpdateTrustAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	query := `UPDATE trust_accounts SET balance = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query, id, balance)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "trust account", id)
}

func (r *trustRepository) CreateClientLedger(ctx context.Context, ledger *domain.ClientLedger) error {
	query := `INSERT INTO client_ledgers (id, trust_account_id, client_id, client_name, balance, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.ExecContext(ctx, query,
		ledger.ID, ledger.TrustAccountID, ledger.ClientID, ledger.ClientName, ledger.Balance, ledger.CreatedAt, ledger.UpdatedAt)
	return err
}

func (r *trustRepository) GetClientLedger(ctx context.Context, id string) (*domain.ClientLedger, error) {
	query := `SELECT id, trust_account_id, client_id, client_name, balance, created_at, updated_at
	          FROM client_ledgers WHERE id = $1`
	var l domain.ClientLedger
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.TrustAccountID, &l.ClientID, &l.ClientName, &l.Balance, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: client ledger %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *trustRepository) ListClientLedgers(ctx context.Context, trustAccountID string) ([]domain.ClientLedger, error) {
	query := `SELECT id, trust_account_id, client_id, client_name, balance, created_at, updated_at
	          FROM client_ledgers WHERE trust_account_id = $1 ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query, trustAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ledgers []domain.ClientLedger
	for rows.Next() {
		var l domain.ClientLedger
		if err := rows.Scan(&l.ID, &l.TrustAccountID, &l.ClientID, &l.ClientName, &l.Balance, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func (r *trustRepository) UpdateClientLedgerBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	query := `UPDATE client_ledgers SET balance = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query, id, balance)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "client ledger", id)
}

func (r *trustRepository) CreateTransaction(ctx context.Context, tx *domain.TrustTransaction) error {
	query := `INSERT INTO trust_transactions (id, client_ledger_id, amount, type, description, created_by, document_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.ExecContext(ctx, query,
		tx.ID, tx.ClientLedgerID, tx.Amount, tx.Type, tx.Description, tx.CreatedBy, tx.DocumentID, tx.CreatedAt)
	return err
}

func (r *trustRepository) ListTransactions(ctx context.Context, clientLedgerID string, from, to time.Time) ([]domain.TrustTransaction, error) {
	query := `SELECT id, client_ledger_id, amount, type, description, created_by, document_id, created_at
	          FROM trust_transactions
	          WHERE client_ledger_id = $1 AND created_at >= $2 AND created_at <= $3
	          ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query, clientLedgerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.TrustTransaction
	for rows.Next() {
		var t domain.TrustTransaction
		if err := rows.Scan(&t.ID, &t.ClientLedgerID, &t.Amount, &t.Type, &t.Description, &t.CreatedBy, &t.DocumentID, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *trustRepository) SumTransactions(ctx context.Context, clientLedgerID string, asOf time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM trust_transactions
	          WHERE client_ledger_id = $1 AND created_at <= $2`
	var sum decimal.Decimal
	err := r.q.QueryRowContext(ctx, query, clientLedgerID, asOf).Scan(&sum)
	return sum, err
}

func (r *trustRepository) SaveReconciliationReport(ctx context.Context, report *domain.ReconciliationReport) error {
	query := `INSERT INTO reconciliation_reports (id, trust_account_id, as_of_date, stated_balance, computed_balance, delta, balanced, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.ExecContext(ctx, query,
		report.ID, report.TrustAccountID, report.AsOfDate, report.StatedBalance, report.ComputedBalance, report.Delta, report.Balanced, report.CreatedAt)
	if err != nil {
		return err
	}

	for _, d := range report.Discrepancies {
		dq := `INSERT INTO reconciliation_discrepancies (report_id, client_ledger_id, client_id, stated_balance, computed_balance, delta)
		       VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := r.q.ExecContext(ctx, dq,
			report.ID, d.ClientLedgerID, d.ClientID, d.StatedBalance, d.ComputedBalance, d.Delta); err != nil {
			return err
		}
	}
	return nil
}

func requireRowAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, entity, id)
	}
	return nil
}
