package models

import (
	"context"
	"time"

)

// Reconciliation check types.
const (
	CheckLedgerReplay  = "LEDGER_REPLAY"
	CheckPurchaseTotal = "PURCHASE_SETTLEMENT"
	CheckAdvanceTotal  = "ADVANCE_BALANCE"
)

// ReconciliationReport is one drift finding of the reconciliation job.
type ReconciliationReport struct {
	ID            int       `gorm:"primaryKey;autoIncrement" json:"id,string"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"`
	EntityId      string    `gorm:"size:36;index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func ListReconciliationReports(ctx context.Context, checkType string, limit int) ([]*ReconciliationReport, error) {
	dbCtx, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	if checkType != "" {
		dbCtx = dbCtx.Where("check_type = ?", checkType)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var results []*ReconciliationReport
	if err := dbCtx.Order("id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
