package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CostBreakdownLine struct {
	BomItemId       string            `json:"bom_item_id"`
	InventoryItemId string            `json:"inventory_item_id"`
	Sku             string            `json:"sku"`
	Name            string            `json:"name"`
	ItemType        InventoryItemType `json:"item_type"`
	QuantityPerUnit decimal.Decimal   `json:"quantity_per_unit"`
	WasteFactor     decimal.Decimal   `json:"waste_factor"`
	UnitCost        decimal.Decimal   `json:"unit_cost"`
	LineCost        decimal.Decimal   `json:"line_cost"`
}

type OverheadAllocation struct {
	Category    ChargeCategory  `json:"category"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PerUnit     decimal.Decimal `json:"per_unit"`
}

type overheadPerUnit struct {
	Lines []OverheadAllocation
	Total decimal.Decimal
}

type SuggestedPriceLine struct {
	MarginFraction decimal.Decimal `json:"margin_fraction"`
	Price          decimal.Decimal `json:"price"`
}

// CostBreakdown is the per-unit cost of one model priced at current average costs.
type CostBreakdown struct {
	ModelId         string               `json:"model_id"`
	Sku             string               `json:"sku"`
	Name            string               `json:"name"`
	Lines           []CostBreakdownLine  `json:"lines"`
	FabricCost      decimal.Decimal      `json:"fabric_cost"`
	AccessoryCost   decimal.Decimal      `json:"accessory_cost"`
	PackagingCost   decimal.Decimal      `json:"packaging_cost"`
	OtherMaterial   decimal.Decimal      `json:"other_material_cost"`
	MaterialCost    decimal.Decimal      `json:"material_cost"`
	LaborCost       decimal.Decimal      `json:"labor_cost"`
	OtherCost       decimal.Decimal      `json:"other_cost"`
	Overhead        []OverheadAllocation `json:"overhead"`
	OverheadCost    decimal.Decimal      `json:"overhead_cost"`
	TotalCost       decimal.Decimal      `json:"total_cost"`
	SellingPrice    decimal.Decimal      `json:"selling_price"`
	Margin          decimal.Decimal      `json:"margin"`
	MarginPercent   decimal.Decimal      `json:"margin_percent"`
	SuggestedPrices []SuggestedPriceLine `json:"suggested_prices"`
}

// CostSnapshot freezes a CostBreakdown. Never mutated.
type CostSnapshot struct {
	ID           int             `gorm:"primaryKey;autoIncrement" json:"id,string"`
	ModelId      string          `gorm:"size:36;not null;index" json:"model_id"`
	MaterialCost decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"material_cost"`
	LaborCost    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"labor_cost"`
	OtherCost    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"other_cost"`
	OverheadCost decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"overhead_cost"`
	TotalCost    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_cost"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"selling_price"`
	Margin       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"margin"`
	Breakdown    string          `gorm:"type:text" json:"breakdown"`
	Notes        string          `gorm:"type:text" json:"notes"`
	ActorId      string          `gorm:"size:64;not null" json:"actor_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// allocatedOverheadPerUnit spreads the active charges of each configured overhead category
// over the model's estimated units. A model without estimated units carries no overhead.
func allocatedOverheadPerUnit(tx *gorm.DB, model *ProductModel) (*overheadPerUnit, error) {
	result := &overheadPerUnit{Lines: []OverheadAllocation{}, Total: decimal.Zero}
	categories := config.GetSettings().OverheadCategories
	if len(categories) == 0 {
		return result, nil
	}

	type categoryTotal struct {
		Category ChargeCategory
		Total    decimal.Decimal
	}
	var totals []categoryTotal
	if err := tx.Model(&Charge{}).
		Select("category, SUM(amount) AS total").
		Where("is_active = ? AND category IN ?", true, categories).
		Group("category").
		Order("category").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	for _, t := range totals {
		line := OverheadAllocation{Category: t.Category, TotalAmount: Round2(t.Total), PerUnit: decimal.Zero}
		if model.EstimatedUnits.IsPositive() {
			line.PerUnit = Round2(t.Total.Div(model.EstimatedUnits))
		}
		result.Lines = append(result.Lines, line)
		result.Total = result.Total.Add(line.PerUnit)
	}
	return result, nil
}

func buildCostBreakdown(tx *gorm.DB, modelId string) (*CostBreakdown, error) {
	model, err := utils.FetchModel[ProductModel](tx, "model", modelId, false, "BomItems", "BomItems.InventoryItem")
	if err != nil {
		return nil, err
	}
	b := &CostBreakdown{
		ModelId:         model.ID,
		Sku:             model.Sku,
		Name:            model.Name,
		Lines:           []CostBreakdownLine{},
		LaborCost:       model.LaborCost,
		OtherCost:       model.OtherCost,
		SellingPrice:    model.SellingPrice,
		SuggestedPrices: []SuggestedPriceLine{},
	}
	for _, bom := range model.BomItems {
		if bom.InventoryItem == nil {
			return nil, utils.NewNotFoundError("inventory item", bom.InventoryItemId)
		}
		item := bom.InventoryItem
		line := CostBreakdownLine{
			BomItemId:       bom.ID,
			InventoryItemId: item.ID,
			Sku:             item.Sku,
			Name:            item.Name,
			ItemType:        item.ItemType,
			QuantityPerUnit: bom.QuantityPerUnit,
			WasteFactor:     bom.WasteFactor,
			UnitCost:        item.AverageCost,
			LineCost:        Round2(bom.QuantityPerUnit.Mul(bom.WasteFactor).Mul(item.AverageCost)),
		}
		switch item.ItemType {
		case InventoryItemTypeMaterial:
			b.FabricCost = b.FabricCost.Add(line.LineCost)
		case InventoryItemTypeAccessory:
			b.AccessoryCost = b.AccessoryCost.Add(line.LineCost)
		case InventoryItemTypePackaging:
			b.PackagingCost = b.PackagingCost.Add(line.LineCost)
		default:
			b.OtherMaterial = b.OtherMaterial.Add(line.LineCost)
		}
		b.Lines = append(b.Lines, line)
	}
	b.MaterialCost = b.FabricCost.Add(b.AccessoryCost).Add(b.PackagingCost).Add(b.OtherMaterial)

	overhead, err := allocatedOverheadPerUnit(tx, model)
	if err != nil {
		return nil, err
	}
	b.Overhead = overhead.Lines
	b.OverheadCost = overhead.Total
	b.TotalCost = b.MaterialCost.Add(b.LaborCost).Add(b.OtherCost).Add(b.OverheadCost)
	b.Margin = b.SellingPrice.Sub(b.TotalCost)
	b.MarginPercent = MarginPercent(b.Margin, b.SellingPrice)
	for _, f := range config.GetSettings().MarginFractions {
		b.SuggestedPrices = append(b.SuggestedPrices, SuggestedPriceLine{
			MarginFraction: f,
			Price:          SuggestedPrice(b.TotalCost, f),
		})
	}
	return b, nil
}

func GetCostBreakdown(ctx context.Context, modelId string) (*CostBreakdown, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.NewInternalError(errDatabaseNotReady)
	}
	return buildCostBreakdown(db.WithContext(ctx), modelId)
}

// CreateCostSnapshot records the model's current breakdown for later comparison.
func CreateCostSnapshot(ctx context.Context, modelId string, notes string) (*CostSnapshot, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	var snapshot CostSnapshot
	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		b, err := buildCostBreakdown(tx, modelId)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		snapshot = CostSnapshot{
			ModelId:      b.ModelId,
			MaterialCost: b.MaterialCost,
			LaborCost:    b.LaborCost,
			OtherCost:    b.OtherCost,
			OverheadCost: b.OverheadCost,
			TotalCost:    b.TotalCost,
			SellingPrice: b.SellingPrice,
			Margin:       b.Margin,
			Breakdown:    string(raw),
			Notes:        notes,
			ActorId:      actor.Id,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}
		return createHistory(tx, actor, HistoryActionSnapshot, EntityProductModel, b.ModelId, nil, &snapshot,
			"Cost snapshot of "+b.Sku+" at "+b.TotalCost.StringFixed(2))
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func ListCostSnapshots(ctx context.Context, modelId string) ([]*CostSnapshot, error) {
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*CostSnapshot
	if err := db.Where("model_id = ?", modelId).Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
