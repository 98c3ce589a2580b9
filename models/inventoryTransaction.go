package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryTransaction is one ledger row. Rows are written once, paired with the
// inventory mutation they describe, and never updated or deleted.
// The id orders the ledger for replay.
type InventoryTransaction struct {
	ID              int                      `gorm:"primaryKey;autoIncrement" json:"id,string"`
	InventoryItemId string                   `gorm:"size:36;not null;index" json:"inventory_item_id"`
	Direction       TransactionDirection     `gorm:"size:3;not null" json:"direction"`
	Type            InventoryTransactionType `gorm:"size:20;not null;index" json:"type"`
	Quantity        decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"quantity"`
	UnitCost        decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"unit_cost"`
	BalanceBefore   decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"balance_before"`
	BalanceAfter    decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	ValueBefore     decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"value_before"`
	ValueAfter      decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"value_after"`
	AvgCostBefore   decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"avg_cost_before"`
	AvgCostAfter    decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"avg_cost_after"`
	ReferenceType   LedgerReferenceType      `gorm:"size:20;not null;index:idx_inventory_tx_reference,priority:1" json:"reference_type"`
	ReferenceId     string                   `gorm:"size:36;not null;index:idx_inventory_tx_reference,priority:2" json:"reference_id"`
	Notes           string                   `gorm:"type:text" json:"notes"`
	ActorId         string                   `gorm:"size:64" json:"actor_id"`
	CreatedAt       time.Time                `gorm:"autoCreateTime" json:"created_at"`
}

type InventoryTransactionFilter struct {
	InventoryItemId string
	ReferenceType   string
	ReferenceId     string
	Limit           int
}

// stockEntry describes one movement before it is applied.
type stockEntry struct {
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	Type          InventoryTransactionType
	ReferenceType LedgerReferenceType
	ReferenceId   string
	Notes         string
}

// postStockIn re-averages item for an incoming movement, saves it and appends the IN row.
// receipt marks purchase receipts, which also move lastCost and lastReceivedAt.
func postStockIn(tx *gorm.DB, item *InventoryItem, e stockEntry, actor utils.Actor, receipt bool) (*InventoryTransaction, error) {
	entry := InventoryTransaction{
		InventoryItemId: item.ID,
		Direction:       TransactionDirectionIn,
		Type:            e.Type,
		Quantity:        e.Quantity,
		UnitCost:        e.UnitCost,
		BalanceBefore:   item.Quantity,
		ValueBefore:     item.TotalValue,
		AvgCostBefore:   item.AverageCost,
		ReferenceType:   e.ReferenceType,
		ReferenceId:     e.ReferenceId,
		Notes:           e.Notes,
		ActorId:         actor.Id,
	}

	item.AverageCost = WeightedAverageCost(item.Quantity, item.AverageCost, e.Quantity, e.UnitCost)
	item.Quantity = item.Quantity.Add(e.Quantity)
	item.refreshDerived()
	if receipt || e.ReferenceType == LedgerReferenceOpeningStock {
		item.LastCost = e.UnitCost
	}
	if receipt {
		t := now()
		item.LastReceivedAt = &t
	}

	entry.BalanceAfter = item.Quantity
	entry.ValueAfter = item.TotalValue
	entry.AvgCostAfter = item.AverageCost

	if err := tx.Save(item).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// postStockOut removes quantity at the current average cost, which stays unchanged.
// Callers check that quantity is on hand.
func postStockOut(tx *gorm.DB, item *InventoryItem, e stockEntry, actor utils.Actor) (*InventoryTransaction, error) {
	if e.Quantity.GreaterThan(item.Quantity) {
		return nil, utils.NewBusinessRuleError("insufficient stock for %s: on hand %s, requested %s",
			item.Sku, item.Quantity.StringFixed(2), e.Quantity.StringFixed(2))
	}
	entry := InventoryTransaction{
		InventoryItemId: item.ID,
		Direction:       TransactionDirectionOut,
		Type:            e.Type,
		Quantity:        e.Quantity,
		UnitCost:        item.AverageCost,
		BalanceBefore:   item.Quantity,
		ValueBefore:     item.TotalValue,
		AvgCostBefore:   item.AverageCost,
		AvgCostAfter:    item.AverageCost,
		ReferenceType:   e.ReferenceType,
		ReferenceId:     e.ReferenceId,
		Notes:           e.Notes,
		ActorId:         actor.Id,
	}

	item.Quantity = item.Quantity.Sub(e.Quantity)
	item.refreshDerived()

	entry.BalanceAfter = item.Quantity
	entry.ValueAfter = item.TotalValue

	if err := tx.Save(item).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func ListInventoryTransactions(ctx context.Context, filter InventoryTransactionFilter) ([]*InventoryTransaction, error) {
	dbCtx, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*InventoryTransaction

	if filter.InventoryItemId != "" {
		dbCtx = dbCtx.Where("inventory_item_id = ?", filter.InventoryItemId)
	}
	if filter.ReferenceType != "" {
		dbCtx = dbCtx.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceId != "" {
		dbCtx = dbCtx.Where("reference_id = ?", filter.ReferenceId)
	}
	if filter.Limit > 0 {
		dbCtx = dbCtx.Limit(filter.Limit)
	}
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ReplayResult compares an item with what its ledger says it should be.
type ReplayResult struct {
	InventoryItemId     string          `json:"inventory_item_id"`
	Sku                 string          `json:"sku"`
	TransactionCount    int             `json:"transaction_count"`
	ReplayedQuantity    decimal.Decimal `json:"replayed_quantity"`
	ReplayedAverageCost decimal.Decimal `json:"replayed_average_cost"`
	CurrentQuantity     decimal.Decimal `json:"current_quantity"`
	CurrentAverageCost  decimal.Decimal `json:"current_average_cost"`
	Consistent          bool            `json:"consistent"`
	Mismatches          []string        `json:"mismatches,omitempty"`
}

// ReplayInventoryItem rebuilds quantity and average cost from a zero baseline by walking
// the item's ledger in id order, and checks each row's before-figures against the running state.
func ReplayInventoryItem(ctx context.Context, id string) (*ReplayResult, error) {
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	item, err := utils.FetchModel[InventoryItem](db, "inventory item", id, false)
	if err != nil {
		return nil, err
	}
	var entries []*InventoryTransaction
	if err := db.Where("inventory_item_id = ?", id).Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return replayLedger(item, entries), nil
}

func replayLedger(item *InventoryItem, entries []*InventoryTransaction) *ReplayResult {
	qty := decimal.Zero
	avg := decimal.Zero
	result := &ReplayResult{
		InventoryItemId:    item.ID,
		Sku:                item.Sku,
		TransactionCount:   len(entries),
		CurrentQuantity:    item.Quantity,
		CurrentAverageCost: item.AverageCost,
	}
	for _, e := range entries {
		if !e.BalanceBefore.Equal(qty) {
			result.Mismatches = append(result.Mismatches,
				fmt.Sprintf("transaction %d: balance before %s, replay has %s", e.ID, e.BalanceBefore.StringFixed(2), qty.StringFixed(2)))
		}
		if !e.AvgCostBefore.Equal(avg) {
			result.Mismatches = append(result.Mismatches,
				fmt.Sprintf("transaction %d: average cost before %s, replay has %s", e.ID, e.AvgCostBefore.StringFixed(2), avg.StringFixed(2)))
		}
		switch e.Direction {
		case TransactionDirectionIn:
			avg = WeightedAverageCost(qty, avg, e.Quantity, e.UnitCost)
			qty = qty.Add(e.Quantity)
		case TransactionDirectionOut:
			qty = qty.Sub(e.Quantity)
		}
	}
	result.ReplayedQuantity = qty
	result.ReplayedAverageCost = avg
	if !qty.Equal(item.Quantity) {
		result.Mismatches = append(result.Mismatches,
			fmt.Sprintf("quantity: item %s, replay %s", item.Quantity.StringFixed(2), qty.StringFixed(2)))
	}
	if !avg.Equal(item.AverageCost) {
		result.Mismatches = append(result.Mismatches,
			fmt.Sprintf("average cost: item %s, replay %s", item.AverageCost.StringFixed(2), avg.StringFixed(2)))
	}
	result.Consistent = len(result.Mismatches) == 0
	return result
}
