package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"lexpay-backend/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every repository method
// runs unchanged inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the postgres-backed repository.Store. A Store created by NewStore
// runs each call on the pool; WithinTx hands the closure a Store bound to a
// single transaction.
type Store struct {
	db *sql.DB
	q  dbtx
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Trust() repository.TrustRepository {
	return &trustRepository{q: s.q}
}

func (s *Store) PaymentPlans() repository.PaymentPlanRepository {
	return &paymentPlanRepository{q: s.q}
}

func (s *Store) Financing() repository.FinancingRepository {
	return &financingRepository{q: s.q}
}

func (s *Store) Invoices() repository.InvoiceRepository {
	return &invoiceRepository{q: s.q}
}

func (s *Store) Billing() repository.BillingRepository {
	return &billingRepository{q: s.q}
}

// WithinTx runs fn inside one database transaction. The transaction commits
// only when fn returns nil; any error or panic rolls everything back, so no
// partial state is ever visible. Nested calls join the enclosing transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &Store{db: s.db, q: tx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}
