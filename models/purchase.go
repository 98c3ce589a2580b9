package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Purchase struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	PurchaseNumber string          `gorm:"size:32;not null;uniqueIndex" json:"purchase_number"`
	SupplierId     string          `gorm:"size:36;not null;index" json:"supplier_id"`
	Status         PurchaseStatus  `gorm:"size:20;not null;index" json:"status"`
	OrderDate      time.Time       `gorm:"not null" json:"order_date"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`
	ShippingCost   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_cost"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`
	AmountDue      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount_due"`
	AdvanceApplied decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"advance_applied"`
	Notes          string          `gorm:"type:text" json:"notes"`
	ReceivedAt     *time.Time      `json:"received_at"`
	Items          []PurchaseItem  `gorm:"foreignKey:PurchaseId" json:"items"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseItem struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	PurchaseId       string          `gorm:"size:36;not null;index" json:"purchase_id"`
	LineNo           int             `gorm:"not null" json:"line_no"`
	InventoryItemId  string          `gorm:"size:36;not null;index" json:"inventory_item_id"`
	QuantityOrdered  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"quantity_ordered"`
	QuantityReceived decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"quantity_received"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_price"`
	LineTotal        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"line_total"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchase struct {
	SupplierId   string            `json:"supplier_id" validate:"required,max=36"`
	OrderDate    *time.Time        `json:"order_date"`
	Items        []NewPurchaseItem `json:"items" validate:"required,min=1,dive"`
	TaxAmount    decimal.Decimal   `json:"tax_amount" validate:"gte=0"`
	ShippingCost decimal.Decimal   `json:"shipping_cost" validate:"gte=0"`
	Notes        string            `json:"notes"`
	// AutoReceive receives every line in full as part of creation.
	AutoReceive bool `json:"auto_receive"`
}

type NewPurchaseItem struct {
	InventoryItemId string          `json:"inventory_item_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

type PurchaseFilter struct {
	SupplierId string
	Status     string
}

func (p *Purchase) itemById(id string) *PurchaseItem {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i]
		}
	}
	return nil
}

func (input *NewPurchase) validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	// quantities are checked at the stored scale
	for i, line := range input.Items {
		if !Round2(line.Quantity).IsPositive() {
			return utils.NewValidationError("line quantity must be at least 0.01",
				map[string]string{fmt.Sprintf("items[%d].quantity", i): "gt=0"})
		}
	}
	return nil
}

// buildItems prices the lines and returns them with the subtotal.
func (input *NewPurchase) buildItems() ([]PurchaseItem, decimal.Decimal) {
	var items []PurchaseItem
	subtotal := decimal.Zero
	for i, line := range input.Items {
		qty := Round2(line.Quantity)
		price := Round2(line.UnitPrice)
		lineTotal := Round2(qty.Mul(price))
		items = append(items, PurchaseItem{
			LineNo:          i + 1,
			InventoryItemId: line.InventoryItemId,
			QuantityOrdered: qty,
			UnitPrice:       price,
			LineTotal:       lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	return items, subtotal
}

// validateLineItems checks that every referenced inventory item exists and is active.
func validateLineItems(tx *gorm.DB, lines []NewPurchaseItem) error {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.InventoryItemId)
	}
	found, err := utils.FetchModelsByIds(tx, ids, false, func(i *InventoryItem) string { return i.ID })
	if err != nil {
		return err
	}
	for _, id := range ids {
		item, ok := found[id]
		if !ok {
			return utils.NewNotFoundError("inventory item", id)
		}
		if !item.isActive() {
			return utils.NewBusinessRuleError("inventory item %s is inactive", item.Sku)
		}
	}
	return nil
}

func CreatePurchase(ctx context.Context, input *NewPurchase) (*Purchase, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	items, subtotal := input.buildItems()
	tax := Round2(input.TaxAmount)
	shipping := Round2(input.ShippingCost)
	total := subtotal.Add(tax).Add(shipping)
	orderDate := now()
	if input.OrderDate != nil {
		orderDate = input.OrderDate.UTC()
	}

	purchase := Purchase{
		SupplierId:   input.SupplierId,
		Status:       PurchaseStatusDraft,
		OrderDate:    orderDate,
		Subtotal:     subtotal,
		TaxAmount:    tax,
		ShippingCost: shipping,
		TotalAmount:  total,
		AmountDue:    total,
		Notes:        input.Notes,
		Items:        items,
	}

	// auto-receive mutates stock, so it holds the same item locks receiving does
	var lockKeys []string
	if input.AutoReceive {
		for _, item := range items {
			lockKeys = append(lockKeys, utils.LockKey(EntityInventoryItem, item.InventoryItemId))
		}
	}

	err = withEntityLocks(ctx, lockKeys, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			if err := validateLineItems(tx, input.Items); err != nil {
				return err
			}
			number, err := utils.NextDocumentNumber[Purchase](ctx, tx, "PO", "purchase_number", orderDate)
			if err != nil {
				return err
			}
			purchase.PurchaseNumber = number
			if err := tx.Create(&purchase).Error; err != nil {
				return err
			}
			if err := createHistory(tx, actor, HistoryActionCreate, EntityPurchase, purchase.ID, nil, &purchase,
				"Created purchase "+purchase.PurchaseNumber+" for "+purchase.TotalAmount.StringFixed(2)); err != nil {
				return err
			}
			if !input.AutoReceive {
				return recordLedgerEvent(tx, "PURCHASE_CREATED", EntityPurchase, purchase.ID, &purchase)
			}

			lines := make([]ReceiveLine, 0, len(purchase.Items))
			for _, item := range purchase.Items {
				lines = append(lines, ReceiveLine{PurchaseItemId: item.ID, Quantity: item.QuantityOrdered})
			}
			_, err = receiveInTransaction(tx, &purchase, lines, actor)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// UpdatePurchase replaces the lines and amounts of a DRAFT purchase.
func UpdatePurchase(ctx context.Context, id string, input *NewPurchase) (*Purchase, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.AutoReceive {
		return nil, utils.NewValidationError("auto_receive is only allowed on create", map[string]string{"auto_receive": "create only"})
	}

	var purchase *Purchase
	err = withEntityLocks(ctx, []string{utils.LockKey(EntityPurchase, id)}, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			purchase, err = utils.FetchModel[Purchase](tx, "purchase", id, true, "Items")
			if err != nil {
				return err
			}
			if purchase.Status != PurchaseStatusDraft {
				return utils.NewBusinessRuleError("only DRAFT purchases can be edited; purchase %s is %s", purchase.PurchaseNumber, purchase.Status)
			}
			if input.SupplierId != purchase.SupplierId && purchase.AdvanceApplied.IsPositive() {
				return utils.NewBusinessRuleError("purchase %s has %s of advances applied from supplier %s; the supplier cannot change",
					purchase.PurchaseNumber, purchase.AdvanceApplied.StringFixed(2), purchase.SupplierId)
			}
			if err := validateLineItems(tx, input.Items); err != nil {
				return err
			}
			before := *purchase

			items, subtotal := input.buildItems()
			tax := Round2(input.TaxAmount)
			shipping := Round2(input.ShippingCost)
			total := subtotal.Add(tax).Add(shipping)
			if total.LessThan(purchase.AdvanceApplied) {
				return utils.NewBusinessRuleError("total %s is below the advance already applied %s",
					total.StringFixed(2), purchase.AdvanceApplied.StringFixed(2))
			}

			if err := tx.Where("purchase_id = ?", purchase.ID).Delete(&PurchaseItem{}).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].PurchaseId = purchase.ID
			}
			if err := tx.Create(&items).Error; err != nil {
				return err
			}

			purchase.SupplierId = input.SupplierId
			if input.OrderDate != nil {
				purchase.OrderDate = input.OrderDate.UTC()
			}
			purchase.Subtotal = subtotal
			purchase.TaxAmount = tax
			purchase.ShippingCost = shipping
			purchase.TotalAmount = total
			purchase.AmountDue = total.Sub(purchase.AdvanceApplied)
			purchase.Notes = input.Notes
			purchase.Items = items
			if err := tx.Omit(clause.Associations).Save(purchase).Error; err != nil {
				return err
			}
			return createHistory(tx, actor, HistoryActionUpdate, EntityPurchase, purchase.ID, &before, purchase,
				"Updated purchase "+purchase.PurchaseNumber)
		})
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// DeletePurchase removes a DRAFT purchase without applied advances, with its lines.
func DeletePurchase(ctx context.Context, id string) (*Purchase, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	var purchase *Purchase
	err = withEntityLocks(ctx, []string{utils.LockKey(EntityPurchase, id)}, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			purchase, err = utils.FetchModel[Purchase](tx, "purchase", id, true, "Items")
			if err != nil {
				return err
			}
			if purchase.Status != PurchaseStatusDraft {
				return utils.NewBusinessRuleError("only DRAFT purchases can be deleted; purchase %s is %s", purchase.PurchaseNumber, purchase.Status)
			}
			if purchase.AdvanceApplied.IsPositive() {
				return utils.NewBusinessRuleError("purchase %s has %s of advances applied", purchase.PurchaseNumber, purchase.AdvanceApplied.StringFixed(2))
			}
			if err := tx.Where("purchase_id = ?", purchase.ID).Delete(&PurchaseItem{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&Purchase{}, "id = ?", purchase.ID).Error; err != nil {
				return err
			}
			return createHistory(tx, actor, HistoryActionDelete, EntityPurchase, purchase.ID, purchase, nil,
				"Deleted purchase "+purchase.PurchaseNumber)
		})
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func MarkPurchaseOrdered(ctx context.Context, id string) (*Purchase, error) {
	return transitionPurchase(ctx, id, PurchaseStatusOrdered)
}

// CancelPurchase is refused once advances are applied; there is no un-apply.
func CancelPurchase(ctx context.Context, id string) (*Purchase, error) {
	return transitionPurchase(ctx, id, PurchaseStatusCancelled)
}

func transitionPurchase(ctx context.Context, id string, to PurchaseStatus) (*Purchase, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	var purchase *Purchase
	err = withEntityLocks(ctx, []string{utils.LockKey(EntityPurchase, id)}, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			purchase, err = utils.FetchModel[Purchase](tx, "purchase", id, true, "Items")
			if err != nil {
				return err
			}
			from := purchase.Status
			if !from.CanTransition(to) {
				return utils.NewBusinessRuleError("purchase %s cannot move from %s to %s", purchase.PurchaseNumber, from, to)
			}
			if to == PurchaseStatusCancelled && purchase.AdvanceApplied.IsPositive() {
				return utils.NewBusinessRuleError("purchase %s has %s of advances applied and cannot be cancelled",
					purchase.PurchaseNumber, purchase.AdvanceApplied.StringFixed(2))
			}
			purchase.Status = to
			if err := tx.Model(&Purchase{}).Where("id = ?", purchase.ID).UpdateColumn("status", to).Error; err != nil {
				return err
			}
			if err := createHistory(tx, actor, HistoryActionStatus, EntityPurchase, purchase.ID,
				map[string]PurchaseStatus{"status": from}, map[string]PurchaseStatus{"status": to},
				"Purchase "+purchase.PurchaseNumber+" "+string(from)+" -> "+string(to)); err != nil {
				return err
			}
			return recordLedgerEvent(tx, "PURCHASE_"+string(to), EntityPurchase, purchase.ID, purchase)
		})
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func GetPurchase(ctx context.Context, id string) (*Purchase, error) {
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Purchase](db, "purchase", id, false, "Items")
}

func ListPurchases(ctx context.Context, filter PurchaseFilter) ([]*Purchase, error) {
	dbCtx, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*Purchase

	if filter.SupplierId != "" {
		dbCtx = dbCtx.Where("supplier_id = ?", filter.SupplierId)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if err := dbCtx.Order("order_date DESC").Order("purchase_number DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
