package workflow

import (
	"context"

	"github.com/mmdatafocus/retail_backend/models"
	"github.com/sirupsen/logrus"
)

// RunReconciliation runs the ledger checks and logs the outcome.
// Intended for a nightly schedule or an admin trigger.
func RunReconciliation(ctx context.Context, logger *logrus.Logger) (*models.ReconciliationSummary, error) {
	summary, err := models.RunReconciliationChecks(ctx)
	if err != nil {
		return summary, err
	}
	if logger != nil {
		entry := logger.WithFields(logrus.Fields{
			"field":             "Reconciliation",
			"correlation_id":    summary.CorrelationId,
			"items_checked":     summary.ItemsChecked,
			"purchases_checked": summary.PurchasesChecked,
			"advances_checked":  summary.AdvancesChecked,
			"mismatches":        summary.Mismatches,
		})
		if summary.Mismatches > 0 {
			entry.Warn("reconciliation found mismatches")
		} else {
			entry.Info("reconciliation completed")
		}
	}
	return summary, nil
}
