package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReceiveLine receives Quantity of one purchase line.
type ReceiveLine struct {
	PurchaseItemId string          `json:"purchase_item_id" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gte=0"`
}

type ReceivePurchaseInput struct {
	Lines []ReceiveLine `json:"lines" validate:"required,min=1,dive"`
}

// ReceiveLinePreview shows what receiving one line does to its inventory item.
type ReceiveLinePreview struct {
	PurchaseItemId  string          `json:"purchase_item_id"`
	InventoryItemId string          `json:"inventory_item_id"`
	Sku             string          `json:"sku"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	QuantityBefore  decimal.Decimal `json:"quantity_before"`
	QuantityAfter   decimal.Decimal `json:"quantity_after"`
	AvgCostBefore   decimal.Decimal `json:"avg_cost_before"`
	AvgCostAfter    decimal.Decimal `json:"avg_cost_after"`
	ValueBefore     decimal.Decimal `json:"value_before"`
	ValueAfter      decimal.Decimal `json:"value_after"`
}

type ReceivePreview struct {
	PurchaseId      string               `json:"purchase_id"`
	PurchaseNumber  string               `json:"purchase_number"`
	Lines           []ReceiveLinePreview `json:"lines"`
	ResultingStatus PurchaseStatus       `json:"resulting_status"`
}

type ReceiveResult struct {
	Purchase     *Purchase               `json:"purchase"`
	Lines        []ReceiveLinePreview    `json:"lines"`
	Transactions []*InventoryTransaction `json:"transactions"`
}

// normalize drops zero lines and merges repeated purchase lines, keeping first-seen order.
func (input *ReceivePurchaseInput) normalize() ([]ReceiveLine, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var lines []ReceiveLine
	index := map[string]int{}
	for _, l := range input.Lines {
		qty := Round2(l.Quantity)
		if qty.IsZero() {
			continue
		}
		if i, ok := index[l.PurchaseItemId]; ok {
			lines[i].Quantity = lines[i].Quantity.Add(qty)
			continue
		}
		index[l.PurchaseItemId] = len(lines)
		lines = append(lines, ReceiveLine{PurchaseItemId: l.PurchaseItemId, Quantity: qty})
	}
	if len(lines) == 0 {
		return nil, utils.NewValidationError("at least one line must receive a positive quantity", map[string]string{"lines": "no positive quantity"})
	}
	return lines, nil
}

// checkReceivable runs every precondition of a receipt; nothing is written before it passes.
func checkReceivable(purchase *Purchase, lines []ReceiveLine) error {
	if purchase.Status.IsTerminal() {
		return utils.NewBusinessRuleError("purchase %s is %s and cannot be received", purchase.PurchaseNumber, purchase.Status)
	}
	for _, line := range lines {
		item := purchase.itemById(line.PurchaseItemId)
		if item == nil {
			return utils.NewNotFoundError("purchase item", line.PurchaseItemId)
		}
		remaining := RemainingQty(item.QuantityOrdered, item.QuantityReceived)
		if line.Quantity.GreaterThan(remaining) {
			return utils.NewBusinessRuleError("line %d of %s: receive quantity %s exceeds remaining %s",
				item.LineNo, purchase.PurchaseNumber, line.Quantity.StringFixed(2), remaining.StringFixed(2))
		}
	}
	return nil
}

func inventoryItemIds(purchase *Purchase, lines []ReceiveLine) []string {
	var ids []string
	for _, line := range lines {
		if item := purchase.itemById(line.PurchaseItemId); item != nil {
			ids = append(ids, item.InventoryItemId)
		}
	}
	return utils.UniqueSlice(ids)
}

func loadReceiptItems(tx *gorm.DB, purchase *Purchase, lines []ReceiveLine, forUpdate bool) (map[string]*InventoryItem, error) {
	ids := inventoryItemIds(purchase, lines)
	items, err := utils.FetchModelsByIds(tx, ids, forUpdate, func(i *InventoryItem) string { return i.ID })
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			return nil, utils.NewNotFoundError("inventory item", id)
		}
	}
	return items, nil
}

// PreviewReceive validates a receipt and projects its effect without writing anything.
func PreviewReceive(ctx context.Context, purchaseId string, input *ReceivePurchaseInput) (*ReceivePreview, error) {
	lines, err := input.normalize()
	if err != nil {
		return nil, err
	}
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	purchase, err := utils.FetchModel[Purchase](db, "purchase", purchaseId, false, "Items")
	if err != nil {
		return nil, err
	}
	if err := checkReceivable(purchase, lines); err != nil {
		return nil, err
	}
	items, err := loadReceiptItems(db, purchase, lines, false)
	if err != nil {
		return nil, err
	}

	preview := &ReceivePreview{PurchaseId: purchase.ID, PurchaseNumber: purchase.PurchaseNumber}
	for _, line := range lines {
		pi := purchase.itemById(line.PurchaseItemId)
		item := items[pi.InventoryItemId]
		p := ReceiveLinePreview{
			PurchaseItemId:  pi.ID,
			InventoryItemId: item.ID,
			Sku:             item.Sku,
			Quantity:        line.Quantity,
			UnitPrice:       pi.UnitPrice,
			QuantityBefore:  item.Quantity,
			AvgCostBefore:   item.AverageCost,
			ValueBefore:     item.TotalValue,
		}
		// lines sharing an item chain through the same copy
		item.AverageCost = WeightedAverageCost(item.Quantity, item.AverageCost, line.Quantity, pi.UnitPrice)
		item.Quantity = item.Quantity.Add(line.Quantity)
		item.refreshDerived()
		p.QuantityAfter = item.Quantity
		p.AvgCostAfter = item.AverageCost
		p.ValueAfter = item.TotalValue
		preview.Lines = append(preview.Lines, p)

		pi.QuantityReceived = pi.QuantityReceived.Add(line.Quantity)
	}
	preview.ResultingStatus = DerivePurchaseStatus(purchase.Items)
	return preview, nil
}

// ReceivePurchase applies a receipt atomically: stock, average costs, ledger rows,
// purchase lines, purchase status and the audit row commit together or not at all.
func ReceivePurchase(ctx context.Context, purchaseId string, input *ReceivePurchaseInput) (*ReceiveResult, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := input.normalize()
	if err != nil {
		return nil, err
	}

	// read the purchase once to know which items to lock
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	current, err := utils.FetchModel[Purchase](db, "purchase", purchaseId, false, "Items")
	if err != nil {
		return nil, err
	}
	if err := checkReceivable(current, lines); err != nil {
		return nil, err
	}
	itemIds := inventoryItemIds(current, lines)
	lockKeys := []string{utils.LockKey(EntityPurchase, purchaseId)}
	locked := map[string]bool{}
	for _, id := range itemIds {
		lockKeys = append(lockKeys, utils.LockKey(EntityInventoryItem, id))
		locked[id] = true
	}

	var result *ReceiveResult
	err = withEntityLocks(ctx, lockKeys, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			purchase, err := utils.FetchModel[Purchase](tx, "purchase", purchaseId, true, "Items")
			if err != nil {
				return err
			}
			for _, id := range inventoryItemIds(purchase, lines) {
				if !locked[id] {
					return utils.NewConflictError("purchase %s changed while receiving, retry", purchase.PurchaseNumber)
				}
			}
			result, err = receiveInTransaction(tx, purchase, lines, actor)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// receiveInTransaction is the receipt algorithm proper. purchase must be loaded with its
// items on tx, and the caller holds the purchase and item locks.
func receiveInTransaction(tx *gorm.DB, purchase *Purchase, lines []ReceiveLine, actor utils.Actor) (*ReceiveResult, error) {
	if err := checkReceivable(purchase, lines); err != nil {
		return nil, err
	}
	items, err := loadReceiptItems(tx, purchase, lines, true)
	if err != nil {
		return nil, err
	}

	before := *purchase
	before.Items = append([]PurchaseItem(nil), purchase.Items...)

	result := &ReceiveResult{Purchase: purchase}
	for _, line := range lines {
		pi := purchase.itemById(line.PurchaseItemId)
		item := items[pi.InventoryItemId]
		preview := ReceiveLinePreview{
			PurchaseItemId:  pi.ID,
			InventoryItemId: item.ID,
			Sku:             item.Sku,
			Quantity:        line.Quantity,
			UnitPrice:       pi.UnitPrice,
		}

		entry, err := postStockIn(tx, item, stockEntry{
			Quantity:      line.Quantity,
			UnitCost:      pi.UnitPrice,
			Type:          InventoryTransactionTypePurchase,
			ReferenceType: LedgerReferencePurchase,
			ReferenceId:   purchase.ID,
			Notes:         purchase.PurchaseNumber,
		}, actor, true)
		if err != nil {
			return nil, err
		}
		preview.QuantityBefore, preview.QuantityAfter = entry.BalanceBefore, entry.BalanceAfter
		preview.AvgCostBefore, preview.AvgCostAfter = entry.AvgCostBefore, entry.AvgCostAfter
		preview.ValueBefore, preview.ValueAfter = entry.ValueBefore, entry.ValueAfter

		pi.QuantityReceived = pi.QuantityReceived.Add(line.Quantity)
		if err := tx.Model(&PurchaseItem{}).Where("id = ?", pi.ID).
			UpdateColumn("quantity_received", pi.QuantityReceived).Error; err != nil {
			return nil, err
		}
		result.Lines = append(result.Lines, preview)
		result.Transactions = append(result.Transactions, entry)
	}

	status := DerivePurchaseStatus(purchase.Items)
	if IsOverReceived(purchase.Items) {
		config.LogWarning(config.GetLogger(), "Purchase", "receiveInTransaction", "purchase over-received, status clamped to RECEIVED",
			logrus.Fields{"purchase_id": purchase.ID, "purchase_number": purchase.PurchaseNumber})
	}
	if status != purchase.Status && !purchase.Status.CanTransition(status) {
		return nil, utils.NewBusinessRuleError("purchase %s cannot move from %s to %s", purchase.PurchaseNumber, purchase.Status, status)
	}
	purchase.Status = status
	if status == PurchaseStatusReceived {
		t := now()
		purchase.ReceivedAt = &t
	}
	if err := tx.Model(&Purchase{}).Where("id = ?", purchase.ID).Updates(map[string]interface{}{
		"status":      purchase.Status,
		"received_at": purchase.ReceivedAt,
	}).Error; err != nil {
		return nil, err
	}

	if err := createHistory(tx, actor, HistoryActionReceive, EntityPurchase, purchase.ID, &before, purchase,
		fmt.Sprintf("Received %d line(s) on %s, status %s", len(lines), purchase.PurchaseNumber, status)); err != nil {
		return nil, err
	}
	if err := recordLedgerEvent(tx, "PURCHASE_RECEIVED", EntityPurchase, purchase.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}
