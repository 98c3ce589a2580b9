package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductModel is a product recipe: per-unit direct costs plus its bill of materials.
type ProductModel struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	Sku            string          `gorm:"size:100;not null;uniqueIndex" json:"sku"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	LaborCost      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"labor_cost"`
	OtherCost      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"other_cost"`
	EstimatedUnits decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"estimated_units"`
	SellingPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"selling_price"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	BomItems       []BomItem       `gorm:"foreignKey:ModelId" json:"bom_items"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BomItem is one component line: QuantityPerUnit of an item per finished unit,
// times WasteFactor (1.05 allows 5% waste).
type BomItem struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	ModelId         string          `gorm:"size:36;not null;uniqueIndex:idx_bom_model_item,priority:1" json:"model_id"`
	InventoryItemId string          `gorm:"size:36;not null;uniqueIndex:idx_bom_model_item,priority:2" json:"inventory_item_id"`
	QuantityPerUnit decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_per_unit"`
	WasteFactor     decimal.Decimal `gorm:"type:decimal(10,4);not null;default:1" json:"waste_factor"`
	InventoryItem   *InventoryItem  `gorm:"foreignKey:InventoryItemId" json:"inventory_item,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Charge is a fixed business cost spread over production as overhead.
type Charge struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	Category    ChargeCategory  `gorm:"size:20;not null;index" json:"category"`
	Description string          `gorm:"size:255" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	ChargeDate  time.Time       `gorm:"not null" json:"charge_date"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewProductModel struct {
	Sku            string          `json:"sku" validate:"required,max=100"`
	Name           string          `json:"name" validate:"required,max=255"`
	LaborCost      decimal.Decimal `json:"labor_cost" validate:"gte=0"`
	OtherCost      decimal.Decimal `json:"other_cost" validate:"gte=0"`
	EstimatedUnits decimal.Decimal `json:"estimated_units" validate:"gte=0"`
	SellingPrice   decimal.Decimal `json:"selling_price" validate:"gte=0"`
	BomItems       []NewBomItem    `json:"bom_items" validate:"dive"`
}

type NewBomItem struct {
	InventoryItemId string          `json:"inventory_item_id" validate:"required"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit" validate:"gt=0"`
	// WasteFactor defaults to 1 when omitted.
	WasteFactor *decimal.Decimal `json:"waste_factor" validate:"omitempty,gte=1"`
}

type NewCharge struct {
	Category    ChargeCategory  `json:"category" validate:"required,oneof=RENT UTILITIES SALARIES MARKETING EQUIPMENT TRANSPORT OTHER"`
	Description string          `json:"description" validate:"max=255"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	ChargeDate  *time.Time      `json:"charge_date"`
}

// bomScale is the fractional precision of the BOM columns.
const bomScale = 4

// checkScale rejects a quantity that the decimal(20,4) column would store as zero.
func (input NewBomItem) checkScale() error {
	if !input.QuantityPerUnit.Round(bomScale).IsPositive() {
		return utils.NewValidationError("quantity per unit must be at least 0.0001",
			map[string]string{"quantity_per_unit": "gt=0"})
	}
	return nil
}

func (input NewBomItem) toBomItem(modelId string) BomItem {
	waste := decimal.NewFromInt(1)
	if input.WasteFactor != nil {
		waste = *input.WasteFactor
	}
	return BomItem{
		ModelId:         modelId,
		InventoryItemId: input.InventoryItemId,
		QuantityPerUnit: input.QuantityPerUnit.Round(bomScale),
		WasteFactor:     waste.Round(bomScale),
	}
}

func validateBomInventoryItem(tx *gorm.DB, id string) error {
	item, err := utils.FetchModel[InventoryItem](tx, "inventory item", id, false)
	if err != nil {
		return err
	}
	if !item.isActive() {
		return utils.NewBusinessRuleError("inventory item %s is inactive", item.Sku)
	}
	return nil
}

func CreateModel(ctx context.Context, input *NewProductModel) (*ProductModel, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, line := range input.BomItems {
		if err := line.checkScale(); err != nil {
			return nil, err
		}
		if seen[line.InventoryItemId] {
			return nil, utils.NewConflictError("bom line already present for inventory item %s", line.InventoryItemId)
		}
		seen[line.InventoryItemId] = true
	}

	model := ProductModel{
		Sku:            input.Sku,
		Name:           input.Name,
		LaborCost:      Round2(input.LaborCost),
		OtherCost:      Round2(input.OtherCost),
		EstimatedUnits: Round2(input.EstimatedUnits),
		SellingPrice:   Round2(input.SellingPrice),
		IsActive:       boolPtr(true),
	}
	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := utils.ValidateUnique[ProductModel](tx, "sku", input.Sku, ""); err != nil {
			return err
		}
		for _, line := range input.BomItems {
			if err := validateBomInventoryItem(tx, line.InventoryItemId); err != nil {
				return err
			}
		}
		if err := tx.Omit("BomItems").Create(&model).Error; err != nil {
			return err
		}
		for _, line := range input.BomItems {
			bom := line.toBomItem(model.ID)
			if err := tx.Omit("InventoryItem").Create(&bom).Error; err != nil {
				return err
			}
			model.BomItems = append(model.BomItems, bom)
		}
		return createHistory(tx, actor, HistoryActionCreate, EntityProductModel, model.ID, nil, &model, "Created model "+model.Sku)
	})
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func GetModel(ctx context.Context, id string) (*ProductModel, error) {
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[ProductModel](db, "model", id, false, "BomItems", "BomItems.InventoryItem")
}

// AddBomItem adds a component line; a model holds at most one line per inventory item.
func AddBomItem(ctx context.Context, modelId string, input *NewBomItem) (*BomItem, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := input.checkScale(); err != nil {
		return nil, err
	}
	bom := input.toBomItem(modelId)
	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := utils.FetchModel[ProductModel](tx, "model", modelId, false); err != nil {
			return err
		}
		if err := validateBomInventoryItem(tx, input.InventoryItemId); err != nil {
			return err
		}
		exists, err := utils.ResourceExists[BomItem](tx, "model_id = ? AND inventory_item_id = ?", modelId, input.InventoryItemId)
		if err != nil {
			return err
		}
		if exists {
			return utils.NewConflictError("bom line already present for inventory item %s", input.InventoryItemId)
		}
		if err := tx.Omit("InventoryItem").Create(&bom).Error; err != nil {
			return err
		}
		return createHistory(tx, actor, HistoryActionUpdate, EntityProductModel, modelId, nil, &bom, "Added bom line")
	})
	if err != nil {
		return nil, err
	}
	return &bom, nil
}

func RemoveBomItem(ctx context.Context, modelId string, bomItemId string) (*BomItem, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	var bom BomItem
	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND model_id = ?", bomItemId, modelId).First(&bom).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("bom item", bomItemId)
			}
			return err
		}
		if err := tx.Delete(&BomItem{}, "id = ?", bom.ID).Error; err != nil {
			return err
		}
		return createHistory(tx, actor, HistoryActionUpdate, EntityProductModel, modelId, &bom, nil, "Removed bom line")
	})
	if err != nil {
		return nil, err
	}
	return &bom, nil
}

func CreateCharge(ctx context.Context, input *NewCharge) (*Charge, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	charge := Charge{
		Category:    input.Category,
		Description: input.Description,
		Amount:      Round2(input.Amount),
		ChargeDate:  now(),
		IsActive:    boolPtr(true),
	}
	if input.ChargeDate != nil {
		charge.ChargeDate = input.ChargeDate.UTC()
	}
	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&charge).Error; err != nil {
			return err
		}
		return createHistory(tx, actor, HistoryActionCreate, EntityCharge, charge.ID, nil, &charge,
			"Created "+string(charge.Category)+" charge "+charge.Amount.StringFixed(2))
	})
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func ListCharges(ctx context.Context, category string) ([]*Charge, error) {
	dbCtx, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*Charge
	if category != "" {
		dbCtx = dbCtx.Where("category = ?", category)
	}
	if err := dbCtx.Order("charge_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
