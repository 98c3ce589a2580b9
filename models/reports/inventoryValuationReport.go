package reports

import (
	"context"
	"errors"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

type InventoryValuationRow struct {
	InventoryItemId string                   `json:"inventory_item_id"`
	Sku             string                   `json:"sku"`
	Name            string                   `json:"name"`
	ItemType        models.InventoryItemType `json:"item_type"`
	Unit            string                   `json:"unit"`
	Quantity        decimal.Decimal          `json:"quantity"`
	Reserved        decimal.Decimal          `json:"reserved"`
	AverageCost     decimal.Decimal          `json:"average_cost"`
	TotalValue      decimal.Decimal          `json:"total_value"`
	BelowMinStock   bool                     `json:"below_min_stock"`
}

type InventoryValuationSubtotal struct {
	ItemType   models.InventoryItemType `json:"item_type"`
	Quantity   decimal.Decimal          `json:"quantity"`
	TotalValue decimal.Decimal          `json:"total_value"`
}

type InventoryValuationReport struct {
	Rows       []*InventoryValuationRow      `json:"rows"`
	Subtotals  []*InventoryValuationSubtotal `json:"subtotals"`
	TotalValue decimal.Decimal               `json:"total_value"`
}

// GetInventoryValuationReport values every item at its stored average cost, grouped by item type.
func GetInventoryValuationReport(ctx context.Context, itemType string, includeInactive bool) (*InventoryValuationReport, error) {
	if itemType != "" && !models.InventoryItemType(itemType).IsValid() {
		return nil, utils.NewValidationError("unknown item type", map[string]string{"item_type": itemType})
	}
	db := config.GetDB()
	if db == nil {
		return nil, utils.NewInternalError(errors.New("database not connected"))
	}
	var items []*models.InventoryItem
	dbCtx := db.WithContext(ctx)
	if itemType != "" {
		dbCtx = dbCtx.Where("item_type = ?", itemType)
	}
	if !includeInactive {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if err := dbCtx.Order("item_type, sku").Find(&items).Error; err != nil {
		return nil, err
	}

	report := &InventoryValuationReport{Rows: []*InventoryValuationRow{}, Subtotals: []*InventoryValuationSubtotal{}}
	var current *InventoryValuationSubtotal
	for _, item := range items {
		row := &InventoryValuationRow{
			InventoryItemId: item.ID,
			Sku:             item.Sku,
			Name:            item.Name,
			ItemType:        item.ItemType,
			Unit:            item.Unit,
			Quantity:        item.Quantity,
			Reserved:        item.Reserved,
			AverageCost:     item.AverageCost,
			TotalValue:      models.TotalValue(item.Quantity, item.AverageCost),
			BelowMinStock:   item.MinStock.IsPositive() && item.Quantity.LessThan(item.MinStock),
		}
		report.Rows = append(report.Rows, row)

		if current == nil || current.ItemType != item.ItemType {
			current = &InventoryValuationSubtotal{ItemType: item.ItemType}
			report.Subtotals = append(report.Subtotals, current)
		}
		current.Quantity = current.Quantity.Add(row.Quantity)
		current.TotalValue = current.TotalValue.Add(row.TotalValue)
		report.TotalValue = report.TotalValue.Add(row.TotalValue)
	}
	return report, nil
}
