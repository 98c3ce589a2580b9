package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/sirupsen/logrus"
)

type ReconciliationSummary struct {
	CorrelationId    string `json:"correlation_id"`
	ItemsChecked     int    `json:"items_checked"`
	PurchasesChecked int    `json:"purchases_checked"`
	AdvancesChecked  int    `json:"advances_checked"`
	Mismatches       int    `json:"mismatches"`
}

// RunReconciliationChecks replays every item's ledger and re-checks the settlement invariants
// of purchases and advances. Each finding is written to reconciliation_reports.
func RunReconciliationChecks(ctx context.Context) (*ReconciliationSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB()
	if db == nil {
		return nil, utils.NewInternalError(errDatabaseNotReady)
	}
	logger := config.GetLogger()
	summary := &ReconciliationSummary{CorrelationId: correlationIdFromContextOrNew(ctx)}

	report := func(checkType, entityType, entityId, details string) error {
		summary.Mismatches++
		config.LogWarning(logger, "Reconciliation", "RunReconciliationChecks", "reconciliation mismatch", logrus.Fields{
			"check_type":     checkType,
			"entity_type":    entityType,
			"entity_id":      entityId,
			"correlation_id": summary.CorrelationId,
			"details":        details,
		})
		return db.WithContext(ctx).Create(&ReconciliationReport{
			CheckType:     checkType,
			EntityType:    entityType,
			EntityId:      entityId,
			Details:       details,
			CorrelationId: summary.CorrelationId,
		}).Error
	}

	// 1) ledger replay per item
	var itemIds []string
	if err := db.WithContext(ctx).Model(&InventoryItem{}).Order("sku").Pluck("id", &itemIds).Error; err != nil {
		return summary, err
	}
	for _, id := range itemIds {
		result, err := ReplayInventoryItem(ctx, id)
		if err != nil {
			return summary, err
		}
		summary.ItemsChecked++
		if !result.Consistent {
			if err := report(CheckLedgerReplay, EntityInventoryItem, id, strings.Join(result.Mismatches, "; ")); err != nil {
				return summary, err
			}
		}
	}

	// 2) amountDue + advanceApplied <= totalAmount, and the applied sum matches the links
	var purchases []*Purchase
	if err := db.WithContext(ctx).Find(&purchases).Error; err != nil {
		return summary, err
	}
	for _, p := range purchases {
		summary.PurchasesChecked++
		if p.AmountDue.Add(p.AdvanceApplied).GreaterThan(p.TotalAmount) {
			details := fmt.Sprintf("amount due %s + advance applied %s exceeds total %s",
				p.AmountDue.StringFixed(2), p.AdvanceApplied.StringFixed(2), p.TotalAmount.StringFixed(2))
			if err := report(CheckPurchaseTotal, EntityPurchase, p.ID, details); err != nil {
				return summary, err
			}
			continue
		}
		var links []*PurchaseAdvance
		if err := db.WithContext(ctx).Where("purchase_id = ?", p.ID).Find(&links).Error; err != nil {
			return summary, err
		}
		linked := Round2(sumAdvanceLinks(links))
		if !linked.Equal(p.AdvanceApplied) {
			details := fmt.Sprintf("advance applied %s, linked applications total %s",
				p.AdvanceApplied.StringFixed(2), linked.StringFixed(2))
			if err := report(CheckPurchaseTotal, EntityPurchase, p.ID, details); err != nil {
				return summary, err
			}
		}
	}

	// 3) amountUsed + amountRemaining == amount
	var advances []*SupplierAdvance
	if err := db.WithContext(ctx).Find(&advances).Error; err != nil {
		return summary, err
	}
	for _, a := range advances {
		summary.AdvancesChecked++
		if !a.AmountUsed.Add(a.AmountRemaining).Equal(a.Amount) {
			details := fmt.Sprintf("used %s + remaining %s differs from amount %s",
				a.AmountUsed.StringFixed(2), a.AmountRemaining.StringFixed(2), a.Amount.StringFixed(2))
			if err := report(CheckAdvanceTotal, EntitySupplierAdvance, a.ID, details); err != nil {
				return summary, err
			}
		}
	}
	return summary, nil
}
