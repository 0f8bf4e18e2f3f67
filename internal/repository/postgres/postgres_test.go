package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpay-backend/internal/domain"
	"lexpay-backend/internal/repository"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestTrustRepository_GetTrustAccount(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "merchant_id", "currency", "balance", "created_at", "updated_at"}).
			AddRow("ta-1", "merchant-1", "USD", "1500.00", now, now)
		mock.ExpectQuery("SELECT id, merchant_id, currency, balance").
			WithArgs("ta-1").
			WillReturnRows(rows)

		account, err := store.Trust().GetTrustAccount(ctx, "ta-1")
		require.NoError(t, err)
		assert.Equal(t, "merchant-1", account.MerchantID)
		assert.True(t, account.Balance.Equal(decimal.NewFromInt(1500)))
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, merchant_id, currency, balance").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := store.Trust().GetTrustAccount(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestTrustRepository_UpdateClientLedgerBalance(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE client_ledgers SET balance").
			WithArgs("cl-1", decimal.NewFromInt(750)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Trust().UpdateClientLedgerBalance(ctx, "cl-1", decimal.NewFromInt(750))
		assert.NoError(t, err)
	})

	t.Run("No row means not found", func(t *testing.T) {
		mock.ExpectExec("UPDATE client_ledgers SET balance").
			WithArgs("missing", decimal.Zero).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Trust().UpdateClientLedgerBalance(ctx, "missing", decimal.Zero)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestTrustRepository_SumTransactions(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	asOf := time.Now()

	rows := sqlmock.NewRows([]string{"sum"}).AddRow("1234.56")
	mock.ExpectQuery("FROM trust_transactions").
		WithArgs("cl-1", asOf).
		WillReturnRows(rows)

	sum, err := store.Trust().SumTransactions(ctx, "cl-1", asOf)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromFloat(1234.56)))
}

func TestPaymentPlanRepository_CreateInstallment(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	now := time.Now()
	inst := &domain.Installment{
		ID:          "inst-1",
		PlanID:      "plan-1",
		PlannedDate: now,
		Amount:      decimal.NewFromInt(500),
		Status:      domain.InstallmentStatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO plan_installments").
		WithArgs(inst.ID, inst.PlanID, inst.PlannedDate, inst.Amount, inst.Status, nil, nullable(""),
			0, nil, nullable(""), nullable(""), inst.CreatedAt, inst.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.PaymentPlans().CreateInstallment(ctx, inst)
	assert.NoError(t, err)
}

func TestPaymentPlanRepository_ClaimInstallment(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("Claims a scheduled installment", func(t *testing.T) {
		mock.ExpectExec("UPDATE plan_installments SET status").
			WithArgs("inst-1", domain.InstallmentStatusScheduled, domain.InstallmentStatusProcessing).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.PaymentPlans().ClaimInstallment(ctx, "inst-1",
			domain.InstallmentStatusScheduled, domain.InstallmentStatusProcessing)
		assert.NoError(t, err)
	})

	t.Run("Lost claim is rejected", func(t *testing.T) {
		mock.ExpectExec("UPDATE plan_installments SET status").
			WithArgs("inst-1", domain.InstallmentStatusScheduled, domain.InstallmentStatusProcessing).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.PaymentPlans().ClaimInstallment(ctx, "inst-1",
			domain.InstallmentStatusScheduled, domain.InstallmentStatusProcessing)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestStore_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commits on success", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE trust_accounts SET balance").
			WithArgs("ta-1", decimal.NewFromInt(100)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(tx repository.Store) error {
			return tx.Trust().UpdateTrustAccountBalance(ctx, "ta-1", decimal.NewFromInt(100))
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls back on error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		sentinel := errors.New("boom")
		err := store.WithinTx(ctx, func(tx repository.Store) error {
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Joins an enclosing transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE trust_accounts SET balance").
			WithArgs("ta-1", decimal.NewFromInt(100)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(outer repository.Store) error {
			return outer.WithinTx(ctx, func(inner repository.Store) error {
				return inner.Trust().UpdateTrustAccountBalance(ctx, "ta-1", decimal.NewFromInt(100))
			})
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
