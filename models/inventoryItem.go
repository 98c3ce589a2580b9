package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InventoryItem struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	Sku            string            `gorm:"size:100;not null;uniqueIndex" json:"sku"`
	Name           string            `gorm:"size:255;not null" json:"name"`
	ItemType       InventoryItemType `gorm:"size:20;not null;index" json:"item_type"`
	Unit           string            `gorm:"size:20" json:"unit"`
	Quantity       decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"quantity"`
	Reserved       decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"reserved"`
	Available      decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"available"`
	AverageCost    decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"average_cost"`
	LastCost       decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"last_cost"`
	TotalValue     decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"total_value"`
	MinStock       decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"min_stock"`
	IsActive       *bool             `gorm:"not null;default:true" json:"is_active"`
	LastReceivedAt *time.Time        `json:"last_received_at"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryItem struct {
	Sku             string            `json:"sku" validate:"required,max=100"`
	Name            string            `json:"name" validate:"required,max=255"`
	ItemType        InventoryItemType `json:"item_type" validate:"required,oneof=MATERIAL ACCESSORY PACKAGING FINISHED_GOOD OTHER"`
	Unit            string            `json:"unit" validate:"max=20"`
	MinStock        decimal.Decimal   `json:"min_stock" validate:"gte=0"`
	OpeningQuantity decimal.Decimal   `json:"opening_quantity" validate:"gte=0"`
	OpeningUnitCost decimal.Decimal   `json:"opening_unit_cost" validate:"gte=0"`
}

type NewInventoryAdjustment struct {
	QuantityDelta decimal.Decimal `json:"quantity_delta" validate:"required"`
	// UnitCost prices a positive delta; defaults to the current average cost.
	UnitCost *decimal.Decimal `json:"unit_cost" validate:"omitempty,gte=0"`
	Reason   string           `json:"reason" validate:"required,max=255"`
}

type InventoryItemFilter struct {
	ItemType   string
	ActiveOnly bool
	LowStock   bool
}

func (item *InventoryItem) isActive() bool {
	return item.IsActive == nil || *item.IsActive
}

func (item *InventoryItem) refreshDerived() {
	item.Available = item.Quantity.Sub(item.Reserved)
	item.TotalValue = TotalValue(item.Quantity, item.AverageCost)
}

func CreateInventoryItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if input.OpeningUnitCost.IsPositive() && !input.OpeningQuantity.IsPositive() {
		return nil, utils.NewValidationError("opening unit cost requires an opening quantity",
			map[string]string{"opening_unit_cost": "requires opening_quantity"})
	}

	item := InventoryItem{
		Sku:      input.Sku,
		Name:     input.Name,
		ItemType: input.ItemType,
		Unit:     input.Unit,
		MinStock: Round2(input.MinStock),
		IsActive: boolPtr(true),
	}
	item.refreshDerived()

	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := utils.ValidateUnique[InventoryItem](tx, "sku", input.Sku, ""); err != nil {
			return err
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if input.OpeningQuantity.IsPositive() {
			if _, err := postStockIn(tx, &item, stockEntry{
				Quantity:      Round2(input.OpeningQuantity),
				UnitCost:      Round2(input.OpeningUnitCost),
				Type:          InventoryTransactionTypeAdjustment,
				ReferenceType: LedgerReferenceOpeningStock,
				ReferenceId:   item.ID,
				Notes:         "opening stock",
			}, actor, false); err != nil {
				return err
			}
		}
		return createHistory(tx, actor, HistoryActionCreate, EntityInventoryItem, item.ID, nil, &item, "Created inventory item "+item.Sku)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// AdjustInventoryItem applies a manual stock correction.
// Positive deltas re-average at UnitCost; negative deltas keep the average and cannot go below zero.
func AdjustInventoryItem(ctx context.Context, id string, input *NewInventoryAdjustment) (*InventoryItem, *InventoryTransaction, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, nil, err
	}
	delta := Round2(input.QuantityDelta)
	if delta.IsZero() {
		return nil, nil, utils.NewValidationError("quantity delta must not be zero", map[string]string{"quantity_delta": "required"})
	}

	var item *InventoryItem
	var entry *InventoryTransaction
	err = withEntityLocks(ctx, []string{utils.LockKey(EntityInventoryItem, id)}, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			item, err = utils.FetchModel[InventoryItem](tx, "inventory item", id, true)
			if err != nil {
				return err
			}
			before := *item
			e := stockEntry{
				Quantity:      delta.Abs(),
				Type:          InventoryTransactionTypeAdjustment,
				ReferenceType: LedgerReferenceAdjustment,
				ReferenceId:   item.ID,
				Notes:         input.Reason,
			}
			if delta.IsPositive() {
				e.UnitCost = item.AverageCost
				if input.UnitCost != nil {
					e.UnitCost = Round2(*input.UnitCost)
				}
				entry, err = postStockIn(tx, item, e, actor, false)
			} else {
				if e.Quantity.GreaterThan(item.Quantity) {
					return utils.NewBusinessRuleError("insufficient stock for %s: on hand %s, adjustment %s",
						item.Sku, item.Quantity.StringFixed(2), delta.StringFixed(2))
				}
				entry, err = postStockOut(tx, item, e, actor)
			}
			if err != nil {
				return err
			}
			return createHistory(tx, actor, HistoryActionAdjust, EntityInventoryItem, item.ID, &before, item,
				"Adjusted "+item.Sku+" by "+delta.StringFixed(2)+": "+input.Reason)
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return item, entry, nil
}

// ReserveInventory holds quantity for the checkout collaborator. No ledger row is written.
func ReserveInventory(ctx context.Context, id string, quantity decimal.Decimal) (*InventoryItem, error) {
	return changeReservation(ctx, id, quantity, HistoryActionReserve)
}

func ReleaseInventory(ctx context.Context, id string, quantity decimal.Decimal) (*InventoryItem, error) {
	return changeReservation(ctx, id, quantity, HistoryActionRelease)
}

func changeReservation(ctx context.Context, id string, quantity decimal.Decimal, action HistoryAction) (*InventoryItem, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	quantity = Round2(quantity)
	if !quantity.IsPositive() {
		return nil, utils.NewValidationError("quantity must be positive", map[string]string{"quantity": "gt=0"})
	}

	var item *InventoryItem
	err = withEntityLocks(ctx, []string{utils.LockKey(EntityInventoryItem, id)}, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			item, err = utils.FetchModel[InventoryItem](tx, "inventory item", id, true)
			if err != nil {
				return err
			}
			before := *item
			if action == HistoryActionReserve {
				if !item.isActive() {
					return utils.NewBusinessRuleError("inventory item %s is inactive", item.Sku)
				}
				if item.Reserved.Add(quantity).GreaterThan(item.Quantity) {
					return utils.NewBusinessRuleError("insufficient stock for %s: available %s, requested %s",
						item.Sku, item.Available.StringFixed(2), quantity.StringFixed(2))
				}
				item.Reserved = item.Reserved.Add(quantity)
			} else {
				if quantity.GreaterThan(item.Reserved) {
					return utils.NewBusinessRuleError("cannot release %s of %s: reserved %s",
						quantity.StringFixed(2), item.Sku, item.Reserved.StringFixed(2))
				}
				item.Reserved = item.Reserved.Sub(quantity)
			}
			item.refreshDerived()
			if err := tx.Save(item).Error; err != nil {
				return err
			}
			return createHistory(tx, actor, action, EntityInventoryItem, item.ID, &before, item,
				string(action)+" "+quantity.StringFixed(2)+" of "+item.Sku)
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ToggleInventoryItemActive soft-(de)activates an item. Items are never hard-deleted.
func ToggleInventoryItemActive(ctx context.Context, id string, isActive bool) (*InventoryItem, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	var item *InventoryItem
	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = utils.FetchModel[InventoryItem](tx, "inventory item", id, true)
		if err != nil {
			return err
		}
		if item.isActive() == isActive {
			return nil
		}
		before := *item
		item.IsActive = boolPtr(isActive)
		if err := tx.Model(item).UpdateColumn("is_active", isActive).Error; err != nil {
			return err
		}
		description := "Deactivated " + item.Sku
		if isActive {
			description = "Activated " + item.Sku
		}
		return createHistory(tx, actor, HistoryActionUpdate, EntityInventoryItem, item.ID, &before, item, description)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func GetInventoryItem(ctx context.Context, id string) (*InventoryItem, error) {
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[InventoryItem](db, "inventory item", id, false)
}

func ListInventoryItems(ctx context.Context, filter InventoryItemFilter) ([]*InventoryItem, error) {
	dbCtx, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*InventoryItem

	if filter.ItemType != "" && !InventoryItemType(filter.ItemType).IsValid() {
		return nil, utils.NewValidationError("unknown item type", map[string]string{"item_type": filter.ItemType})
	}
	if filter.ItemType != "" {
		dbCtx = dbCtx.Where("item_type = ?", filter.ItemType)
	}
	if filter.ActiveOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if filter.LowStock {
		dbCtx = dbCtx.Where("quantity <= min_stock")
	}
	if err := dbCtx.Order("sku").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
