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

type trustLedgerService struct {
	store repository.Store
}

func NewTrustLedgerService(store repository.Store) TrustLedgerService {
	return &trustLedgerService{store: store}
}

func (s *trustLedgerService) CreateTrustAccount(ctx context.Context, merchantID, currency string) (*domain.TrustAccount, error) {
	if merchantID == "" {
		return nil, fmt.Errorf("%w: merchant id is required", domain.ErrValidation)
	}
	if currency == "" {
		currency = "USD"
	}

	now := time.Now()
	account := &domain.TrustAccount{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		Currency:   currency,
		Balance:    decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Trust().CreateTrustAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *trustLedgerService) CreateClientLedger(ctx context.Context, merchantID, trustAccountID, clientID, clientName string) (*domain.ClientLedger, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", domain.ErrValidation)
	}

	account, err := s.store.Trust().GetTrustAccount(ctx, trustAccountID)
	if err != nil {
		return nil, err
	}
	// A trust account is only visible to its owning merchant.
	if account.MerchantID != merchantID {
		return nil, fmt.Errorf("%w: trust account %s", domain.ErrNotFound, trustAccountID)
	}

	now := time.Now()
	ledger := &domain.ClientLedger{
		ID:             uuid.NewString(),
		TrustAccountID: trustAccountID,
		ClientID:       clientID,
		ClientName:     clientName,
		Balance:        decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Trust().CreateClientLedger(ctx, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// RecordTransaction appends an immutable ledger entry and recomputes the
// ledger and trust account balances in one unit of work. A disbursement that
// would drive the ledger negative rolls the whole unit back.
func (s *trustLedgerService) RecordTransaction(ctx context.Context, clientLedgerID string, amount decimal.Decimal, txType domain.TrustTransactionType, description, createdBy string, documentID *string) (*domain.TrustTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	var signed decimal.Decimal
	switch txType {
	case domain.TrustTransactionTypeDeposit:
		signed = amount
	case domain.TrustTransactionTypeDisbursement:
		signed = amount.Neg()
	case domain.TrustTransactionTypeTransfer:
		return nil, fmt.Errorf("%w: transfers are recorded via TransferFunds", domain.ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %q", domain.ErrValidation, txType)
	}

	var entry *domain.TrustTransaction
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		appended, err := appendEntry(ctx, tx, clientLedgerID, signed, txType, description, createdBy, documentID)
		if err != nil {
			return err
		}
		entry = appended
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Trust transaction recorded",
		"ledger_id", clientLedgerID,
		"type", txType,
		"amount", signed.String())
	return entry, nil
}

// TransferFunds moves funds between two client ledgers of the same trust
// account as a pair of offsetting transfer entries. The pooled account
// balance is unchanged; per-client balances move atomically.
func (s *trustLedgerService) TransferFunds(ctx context.Context, fromLedgerID, toLedgerID string, amount decimal.Decimal, createdBy string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if fromLedgerID == toLedgerID {
		return fmt.Errorf("%w: cannot transfer a ledger to itself", domain.ErrValidation)
	}

	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		from, err := tx.Trust().GetClientLedger(ctx, fromLedgerID)
		if err != nil {
			return err
		}
		to, err := tx.Trust().GetClientLedger(ctx, toLedgerID)
		if err != nil {
			return err
		}
		if from.TrustAccountID != to.TrustAccountID {
			return fmt.Errorf("%w: ledgers belong to different trust accounts", domain.ErrValidation)
		}

		desc := fmt.Sprintf("transfer to ledger %s", toLedgerID)
		if _, err := appendEntry(ctx, tx, fromLedgerID, amount.Neg(), domain.TrustTransactionTypeTransfer, desc, createdBy, nil); err != nil {
			return err
		}
		desc = fmt.Sprintf("transfer from ledger %s", fromLedgerID)
		_, err = appendEntry(ctx, tx, toLedgerID, amount, domain.TrustTransactionTypeTransfer, desc, createdBy, nil)
		return err
	})
}

// appendEntry writes one signed transaction and re-derives the ledger and
// trust account balances. It must run inside an enclosing unit of work.
func appendEntry(ctx context.Context, tx repository.Store, clientLedgerID string, signed decimal.Decimal, txType domain.TrustTransactionType, description, createdBy string, documentID *string) (*domain.TrustTransaction, error) {
	ledger, err := tx.Trust().GetClientLedger(ctx, clientLedgerID)
	if err != nil {
		return nil, err
	}

	newBalance := ledger.Balance.Add(signed)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("%w: ledger %s balance %s cannot cover %s",
			domain.ErrInsufficientFunds, clientLedgerID, ledger.Balance.String(), signed.Abs().String())
	}

	entry := &domain.TrustTransaction{
		ID:             uuid.NewString(),
		ClientLedgerID: clientLedgerID,
		Amount:         signed,
		Type:           txType,
		Description:    description,
		CreatedBy:      createdBy,
		DocumentID:     documentID,
		CreatedAt:      time.Now(),
	}
	if err := tx.Trust().CreateTransaction(ctx, entry); err != nil {
		return nil, err
	}
	if err := tx.Trust().UpdateClientLedgerBalance(ctx, clientLedgerID, newBalance); err != nil {
		return nil, err
	}

	account, err := tx.Trust().GetTrustAccount(ctx, ledger.TrustAccountID)
	if err != nil {
		return nil, err
	}
	if err := tx.Trust().UpdateTrustAccountBalance(ctx, account.ID, account.Balance.Add(signed)); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *trustLedgerService) GetClientLedgerStatement(ctx context.Context, clientLedgerID string, from, to time.Time) ([]domain.TrustTransaction, error) {
	if _, err := s.store.Trust().GetClientLedger(ctx, clientLedgerID); err != nil {
		return nil, err
	}
	return s.store.Trust().ListTransactions(ctx, clientLedgerID, from, to)
}

func (s *trustLedgerService) GetTrustAccountLedgers(ctx context.Context, trustAccountID string) ([]domain.ClientLedger, error) {
	if _, err := s.store.Trust().GetTrustAccount(ctx, trustAccountID); err != nil {
		return nil, err
	}
	return s.store.Trust().ListClientLedgers(ctx, trustAccountID)
}

// ReconcileTrustAccount compares stated balances against derived sums and
// reports every mismatch. Discrepancies are data for accounting review; the
// engine never adjusts a balance to make a report come out clean.
func (s *trustLedgerService) ReconcileTrustAccount(ctx context.Context, trustAccountID string, asOf time.Time) (*domain.ReconciliationReport, error) {
	account, err := s.store.Trust().GetTrustAccount(ctx, trustAccountID)
	if err != nil {
		return nil, err
	}

	ledgers, err := s.store.Trust().ListClientLedgers(ctx, trustAccountID)
	if err != nil {
		return nil, err
	}

	report := &domain.ReconciliationReport{
		ID:             uuid.NewString(),
		TrustAccountID: trustAccountID,
		AsOfDate:       asOf,
		StatedBalance:  account.Balance,
		CreatedAt:      time.Now(),
	}

	ledgerSum := decimal.Zero
	for _, ledger := range ledgers {
		ledgerSum = ledgerSum.Add(ledger.Balance)

		computed, err := s.store.Trust().SumTransactions(ctx, ledger.ID, asOf)
		if err != nil {
			return nil, err
		}
		if !ledger.Balance.Equal(computed) {
			report.Discrepancies = append(report.Discrepancies, domain.LedgerDiscrepancy{
				ClientLedgerID:  ledger.ID,
				ClientID:        ledger.ClientID,
				StatedBalance:   ledger.Balance,
				ComputedBalance: computed,
				Delta:           ledger.Balance.Sub(computed),
			})
		}
	}

	report.ComputedBalance = ledgerSum
	report.Delta = account.Balance.Sub(ledgerSum)
	report.Balanced = report.Delta.IsZero() && len(report.Discrepancies) == 0

	if err := s.store.Trust().SaveReconciliationReport(ctx, report); err != nil {
		return nil, err
	}

	if !report.Balanced {
		logger.Warn("Trust account reconciliation mismatch",
			"trust_account_id", trustAccountID,
			"delta", report.Delta.String(),
			"ledger_discrepancies", len(report.Discrepancies))
	}
	return report, nil
}
