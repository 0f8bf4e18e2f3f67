package jobs

import (
	"context"
	"time"

	"lexpay-backend/internal/logger"
)

// ProcessDuePayments collects the due installment of every active
// auto-process plan, merchant by merchant. A merchant whose sweep fails is
// skipped, never the whole run.
func (jr *JobRunner) ProcessDuePayments() {
	jr.runWithRecovery("ProcessDuePayments", func() {
		ctx := context.Background()
		asOf := time.Now()

		merchants, err := jr.store.PaymentPlans().ListMerchantsWithDuePlans(ctx, asOf)
		if err != nil {
			logger.Error("Failed to list merchants with due plans", "error", err)
			return
		}

		totalProcessed, totalSuccessful, totalFailed := 0, 0, 0
		for _, merchantID := range merchants {
			result, err := jr.services.Plans.ProcessDuePayments(ctx, merchantID, asOf)
			if err != nil {
				logger.Error("Failed to sweep due payments for merchant",
					"merchant_id", merchantID,
					"error", err)
				continue
			}

			logger.Info("Swept due payments for merchant",
				"merchant_id", merchantID,
				"processed", result.Processed,
				"successful", result.Successful,
				"failed", result.Failed)

			totalProcessed += result.Processed
			totalSuccessful += result.Successful
			totalFailed += result.Failed
		}

		logger.Info("Completed due payment sweep",
			"merchants", len(merchants),
			"processed", totalProcessed,
			"successful", totalSuccessful,
			"failed", totalFailed)
	})
}

// RetryFailedPayments reprocesses failed installments whose retry window has
// opened, up to the configured retry limit.
func (jr *JobRunner) RetryFailedPayments() {
	jr.runWithRecovery("RetryFailedPayments", func() {
		ctx := context.Background()
		asOf := time.Now()
		maxRetries := jr.config.Payments.MaxRetries

		merchants, err := jr.store.PaymentPlans().ListMerchantsWithRetryableInstallments(ctx, asOf, maxRetries)
		if err != nil {
			logger.Error("Failed to list merchants with retryable installments", "error", err)
			return
		}

		totalProcessed, totalSuccessful, totalFailed := 0, 0, 0
		for _, merchantID := range merchants {
			result, err := jr.services.Plans.RetryFailedPayments(ctx, merchantID, asOf)
			if err != nil {
				logger.Error("Failed to retry payments for merchant",
					"merchant_id", merchantID,
					"error", err)
				continue
			}

			logger.Info("Retried failed payments for merchant",
				"merchant_id", merchantID,
				"processed", result.Processed,
				"successful", result.Successful,
				"failed", result.Failed)

			totalProcessed += result.Processed
			totalSuccessful += result.Successful
			totalFailed += result.Failed
		}

		logger.Info("Completed payment retry sweep",
			"merchants", len(merchants),
			"processed", totalProcessed,
			"successful", totalSuccessful,
			"failed", totalFailed)
	})
}
