package jobs

import (
	"context"
	"time"

	"lexpay-backend/internal/logger"
)

// ReconcileAllTrustAccounts runs the nightly three-way reconciliation over
// every trust account. Reports are persisted whether or not they balance;
// an unbalanced account is surfaced in the logs for follow-up, never
// auto-corrected.
func (jr *JobRunner) ReconcileAllTrustAccounts() {
	jr.runWithRecovery("ReconcileAllTrustAccounts", func() {
		ctx := context.Background()
		asOf := time.Now()

		accounts, err := jr.store.Trust().ListTrustAccounts(ctx)
		if err != nil {
			logger.Error("Failed to list trust accounts", "error", err)
			return
		}

		balanced, unbalanced := 0, 0
		for _, account := range accounts {
			report, err := jr.services.Trust.ReconcileTrustAccount(ctx, account.ID, asOf)
			if err != nil {
				logger.Error("Failed to reconcile trust account",
					"trust_account_id", account.ID,
					"error", err)
				continue
			}

			if report.Balanced {
				balanced++
				continue
			}

			unbalanced++
			logger.Warn("Trust account out of balance",
				"merchant_id", account.MerchantID,
				"error", report.Err())
		}

		logger.Info("Completed trust account reconciliation",
			"accounts", len(accounts),
			"balanced", balanced,
			"unbalanced", unbalanced)
	})
}
