package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProductionBatch struct {
	ID                     string                  `gorm:"primaryKey;size:36" json:"id"`
	BatchNumber            string                  `gorm:"size:32;not null;uniqueIndex" json:"batch_number"`
	ModelId                string                  `gorm:"size:36;not null;index" json:"model_id"`
	PlannedQty             decimal.Decimal         `gorm:"type:decimal(20,2);not null" json:"planned_qty"`
	ProducedQty            decimal.Decimal         `gorm:"type:decimal(20,2);not null;default:0" json:"produced_qty"`
	Status                 ProductionBatchStatus   `gorm:"size:20;not null;index" json:"status"`
	MaterialsCost          decimal.Decimal         `gorm:"type:decimal(20,2);not null;default:0" json:"materials_cost"`
	LaborCost              decimal.Decimal         `gorm:"type:decimal(20,2);not null;default:0" json:"labor_cost"`
	OverheadCost           decimal.Decimal         `gorm:"type:decimal(20,2);not null;default:0" json:"overhead_cost"`
	TotalCost              decimal.Decimal         `gorm:"type:decimal(20,2);not null;default:0" json:"total_cost"`
	CostPerUnit            *decimal.Decimal        `gorm:"type:decimal(20,2)" json:"cost_per_unit"`
	OverProduced           decimal.Decimal         `gorm:"type:decimal(20,2);not null;default:0" json:"over_produced"`
	AvailabilityOverridden bool                    `gorm:"not null;default:false" json:"availability_overridden"`
	StartedAt              *time.Time              `json:"started_at"`
	CompletedAt            *time.Time              `json:"completed_at"`
	Notes                  string                  `gorm:"type:text" json:"notes"`
	Consumptions           []ProductionConsumption `gorm:"foreignKey:BatchId" json:"consumptions,omitempty"`
	CreatedAt              time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductionConsumption is the material drawn for one BOM line of a batch. Never mutated.
type ProductionConsumption struct {
	ID                    int             `gorm:"primaryKey;autoIncrement" json:"id,string"`
	BatchId               string          `gorm:"size:36;not null;index" json:"batch_id"`
	InventoryItemId       string          `gorm:"size:36;not null;index" json:"inventory_item_id"`
	QuantityConsumed      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"quantity_consumed"`
	UnitCostAtConsumption decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_cost_at_consumption"`
	TotalCost             decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_cost"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewProductionBatch struct {
	ModelId    string          `json:"model_id" validate:"required"`
	PlannedQty decimal.Decimal `json:"planned_qty" validate:"gt=0"`
	Notes      string          `json:"notes"`
}

type ConsumeMaterialsInput struct {
	// OverrideAvailability skips the available-stock check. On-hand quantity still cannot go negative.
	OverrideAvailability bool `json:"override_availability"`
}

type CompleteBatchInput struct {
	ProducedQty       decimal.Decimal  `json:"produced_qty" validate:"gte=0"`
	LaborCostOverride *decimal.Decimal `json:"labor_cost_override" validate:"omitempty,gte=0"`
	// AcceptOverage allows producedQty above plannedQty; the excess is recorded.
	AcceptOverage bool `json:"accept_overage"`
}

// MaterialRequirement is one BOM line measured against stock.
type MaterialRequirement struct {
	InventoryItemId string          `json:"inventory_item_id"`
	Sku             string          `json:"sku"`
	Name            string          `json:"name"`
	Required        decimal.Decimal `json:"required"`
	Available       decimal.Decimal `json:"available"`
	Shortage        decimal.Decimal `json:"shortage"`
}

type AvailabilityReport struct {
	ModelId    string                `json:"model_id"`
	PlannedQty decimal.Decimal       `json:"planned_qty"`
	Lines      []MaterialRequirement `json:"lines"`
	Shortages  []MaterialRequirement `json:"shortages"`
	CanProduce bool                  `json:"can_produce"`
}

func loadModelWithBom(tx *gorm.DB, modelId string) (*ProductModel, error) {
	return utils.FetchModel[ProductModel](tx, "model", modelId, false, "BomItems")
}

func bomItemIds(model *ProductModel) []string {
	ids := make([]string, 0, len(model.BomItems))
	for _, line := range model.BomItems {
		ids = append(ids, line.InventoryItemId)
	}
	return ids
}

// availability compares each BOM line's requirement with the item's available stock.
func availability(model *ProductModel, items map[string]*InventoryItem, plannedQty decimal.Decimal) (*AvailabilityReport, error) {
	report := &AvailabilityReport{ModelId: model.ID, PlannedQty: plannedQty, Lines: []MaterialRequirement{}, Shortages: []MaterialRequirement{}}
	for _, line := range model.BomItems {
		item, ok := items[line.InventoryItemId]
		if !ok {
			return nil, utils.NewNotFoundError("inventory item", line.InventoryItemId)
		}
		req := MaterialRequirement{
			InventoryItemId: item.ID,
			Sku:             item.Sku,
			Name:            item.Name,
			Required:        RequiredQuantity(line, plannedQty),
			Available:       item.Available,
			Shortage:        decimal.Zero,
		}
		if req.Required.GreaterThan(item.Available) {
			req.Shortage = req.Required.Sub(item.Available)
			report.Shortages = append(report.Shortages, req)
		}
		report.Lines = append(report.Lines, req)
	}
	report.CanProduce = len(report.Shortages) == 0
	return report, nil
}

func CheckMaterialAvailability(ctx context.Context, modelId string, plannedQty decimal.Decimal) (*AvailabilityReport, error) {
	plannedQty = Round2(plannedQty)
	if !plannedQty.IsPositive() {
		return nil, utils.NewValidationError("planned quantity must be positive", map[string]string{"planned_qty": "gt=0"})
	}
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	model, err := loadModelWithBom(db, modelId)
	if err != nil {
		return nil, err
	}
	items, err := utils.FetchModelsByIds(db, bomItemIds(model), false, func(i *InventoryItem) string { return i.ID })
	if err != nil {
		return nil, err
	}
	return availability(model, items, plannedQty)
}

func CreateProductionBatch(ctx context.Context, input *NewProductionBatch) (*ProductionBatch, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !Round2(input.PlannedQty).IsPositive() {
		return nil, utils.NewValidationError("planned quantity must be at least 0.01", map[string]string{"planned_qty": "gt=0"})
	}
	batch := ProductionBatch{
		ModelId:    input.ModelId,
		PlannedQty: Round2(input.PlannedQty),
		Status:     ProductionBatchStatusPlanned,
		Notes:      input.Notes,
	}
	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		model, err := utils.FetchModel[ProductModel](tx, "model", input.ModelId, false)
		if err != nil {
			return err
		}
		if model.IsActive != nil && !*model.IsActive {
			return utils.NewBusinessRuleError("model %s is inactive", model.Sku)
		}
		number, err := utils.NextDocumentNumber[ProductionBatch](ctx, tx, "PB", "batch_number", now())
		if err != nil {
			return err
		}
		batch.BatchNumber = number
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		return createHistory(tx, actor, HistoryActionCreate, EntityProductionBatch, batch.ID, nil, &batch,
			"Planned batch "+batch.BatchNumber+" of "+batch.PlannedQty.StringFixed(2)+" "+model.Sku)
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ConsumeMaterials draws every BOM line for the batch's planned quantity and starts the batch.
// Average costs do not change; each line is booked at the item's current average cost.
func ConsumeMaterials(ctx context.Context, batchId string, input *ConsumeMaterialsInput) (*ProductionBatch, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if input == nil {
		input = &ConsumeMaterialsInput{}
	}

	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	current, err := utils.FetchModel[ProductionBatch](db, "production batch", batchId, false)
	if err != nil {
		return nil, err
	}
	model, err := loadModelWithBom(db, current.ModelId)
	if err != nil {
		return nil, err
	}
	if len(model.BomItems) == 0 {
		return nil, utils.NewBusinessRuleError("model %s has no bill of materials", model.Sku)
	}
	lockKeys := []string{utils.LockKey(EntityProductionBatch, batchId)}
	for _, id := range bomItemIds(model) {
		lockKeys = append(lockKeys, utils.LockKey(EntityInventoryItem, id))
	}

	var batch *ProductionBatch
	err = withEntityLocks(ctx, lockKeys, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			batch, err = utils.FetchModel[ProductionBatch](tx, "production batch", batchId, true)
			if err != nil {
				return err
			}
			if batch.Status != ProductionBatchStatusPlanned {
				return utils.NewBusinessRuleError("batch %s is %s; materials are consumed only from PLANNED", batch.BatchNumber, batch.Status)
			}
			items, err := utils.FetchModelsByIds(tx, bomItemIds(model), true, func(i *InventoryItem) string { return i.ID })
			if err != nil {
				return err
			}
			report, err := availability(model, items, batch.PlannedQty)
			if err != nil {
				return err
			}
			if !report.CanProduce && !input.OverrideAvailability {
				details := map[string]string{}
				for _, s := range report.Shortages {
					details[s.Sku] = "short " + s.Shortage.StringFixed(2)
				}
				return &utils.AppError{
					Kind:    utils.KindBusinessRule,
					Message: "insufficient materials for batch " + batch.BatchNumber,
					Details: details,
				}
			}
			// on-hand stock is checked for every line before the first write
			for _, line := range report.Lines {
				item := items[line.InventoryItemId]
				if line.Required.GreaterThan(item.Quantity) {
					return utils.NewBusinessRuleError("insufficient stock for %s: on hand %s, required %s",
						item.Sku, item.Quantity.StringFixed(2), line.Required.StringFixed(2))
				}
			}

			before := *batch
			materialsCost := decimal.Zero
			for _, line := range report.Lines {
				item := items[line.InventoryItemId]
				unitCost := item.AverageCost
				if _, err := postStockOut(tx, item, stockEntry{
					Quantity:      line.Required,
					Type:          InventoryTransactionTypeConsumption,
					ReferenceType: LedgerReferenceProductionBatch,
					ReferenceId:   batch.ID,
					Notes:         batch.BatchNumber,
				}, actor); err != nil {
					return err
				}
				lineCost := Round2(line.Required.Mul(unitCost))
				consumption := ProductionConsumption{
					BatchId:               batch.ID,
					InventoryItemId:       item.ID,
					QuantityConsumed:      line.Required,
					UnitCostAtConsumption: unitCost,
					TotalCost:             lineCost,
				}
				if err := tx.Create(&consumption).Error; err != nil {
					return err
				}
				batch.Consumptions = append(batch.Consumptions, consumption)
				materialsCost = materialsCost.Add(lineCost)
			}

			t := now()
			batch.Status = ProductionBatchStatusInProgress
			batch.MaterialsCost = materialsCost
			batch.AvailabilityOverridden = !report.CanProduce
			batch.StartedAt = &t
			if err := tx.Model(&ProductionBatch{}).Where("id = ?", batch.ID).Updates(map[string]interface{}{
				"status":                  batch.Status,
				"materials_cost":          batch.MaterialsCost,
				"availability_overridden": batch.AvailabilityOverridden,
				"started_at":              batch.StartedAt,
			}).Error; err != nil {
				return err
			}
			if batch.AvailabilityOverridden {
				config.LogWarning(config.GetLogger(), "ProductionBatch", "ConsumeMaterials", "materials consumed with availability override",
					logrus.Fields{"batch_id": batch.ID, "batch_number": batch.BatchNumber, "shortages": len(report.Shortages)})
			}
			if err := createHistory(tx, actor, HistoryActionConsume, EntityProductionBatch, batch.ID, &before, batch,
				"Consumed materials for "+batch.BatchNumber+" costing "+materialsCost.StringFixed(2)); err != nil {
				return err
			}
			return recordLedgerEvent(tx, "BATCH_MATERIALS_CONSUMED", EntityProductionBatch, batch.ID, batch)
		})
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// CompleteBatch closes an IN_PROGRESS batch with its produced quantity and final costs.
func CompleteBatch(ctx context.Context, batchId string, input *CompleteBatchInput) (*ProductionBatch, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	produced := Round2(input.ProducedQty)

	var batch *ProductionBatch
	err = withEntityLocks(ctx, []string{utils.LockKey(EntityProductionBatch, batchId)}, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			batch, err = utils.FetchModel[ProductionBatch](tx, "production batch", batchId, true)
			if err != nil {
				return err
			}
			if !batch.Status.CanTransition(ProductionBatchStatusCompleted) {
				return utils.NewBusinessRuleError("batch %s is %s; only IN_PROGRESS batches can be completed", batch.BatchNumber, batch.Status)
			}
			if produced.GreaterThan(batch.PlannedQty) && !input.AcceptOverage {
				return utils.NewBusinessRuleError("produced quantity %s exceeds planned %s for batch %s",
					produced.StringFixed(2), batch.PlannedQty.StringFixed(2), batch.BatchNumber)
			}
			model, err := utils.FetchModel[ProductModel](tx, "model", batch.ModelId, false)
			if err != nil {
				return err
			}
			overheadPerUnit, err := allocatedOverheadPerUnit(tx, model)
			if err != nil {
				return err
			}

			before := *batch
			laborCost := Round2(model.LaborCost.Mul(produced))
			if input.LaborCostOverride != nil {
				laborCost = Round2(*input.LaborCostOverride)
			}
			overheadCost := Round2(model.OtherCost.Add(overheadPerUnit.Total).Mul(produced))
			totalCost := batch.MaterialsCost.Add(laborCost).Add(overheadCost)

			t := now()
			batch.ProducedQty = produced
			batch.LaborCost = laborCost
			batch.OverheadCost = overheadCost
			batch.TotalCost = totalCost
			batch.CostPerUnit = nil
			if produced.IsPositive() {
				perUnit := Round2(totalCost.Div(produced))
				batch.CostPerUnit = &perUnit
			}
			batch.OverProduced = decimal.Zero
			if produced.GreaterThan(batch.PlannedQty) {
				batch.OverProduced = produced.Sub(batch.PlannedQty)
				config.LogWarning(config.GetLogger(), "ProductionBatch", "CompleteBatch", "batch produced more than planned",
					logrus.Fields{"batch_id": batch.ID, "batch_number": batch.BatchNumber,
						"planned": batch.PlannedQty.String(), "produced": produced.String()})
			}
			batch.Status = ProductionBatchStatusCompleted
			batch.CompletedAt = &t

			if err := tx.Model(&ProductionBatch{}).Where("id = ?", batch.ID).Updates(map[string]interface{}{
				"produced_qty":  batch.ProducedQty,
				"labor_cost":    batch.LaborCost,
				"overhead_cost": batch.OverheadCost,
				"total_cost":    batch.TotalCost,
				"cost_per_unit": batch.CostPerUnit,
				"over_produced": batch.OverProduced,
				"status":        batch.Status,
				"completed_at":  batch.CompletedAt,
			}).Error; err != nil {
				return err
			}
			if err := createHistory(tx, actor, HistoryActionComplete, EntityProductionBatch, batch.ID, &before, batch,
				"Completed "+batch.BatchNumber+" with "+produced.StringFixed(2)+" units, total cost "+totalCost.StringFixed(2)); err != nil {
				return err
			}
			return recordLedgerEvent(tx, "BATCH_COMPLETED", EntityProductionBatch, batch.ID, batch)
		})
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func HoldBatch(ctx context.Context, batchId string) (*ProductionBatch, error) {
	return transitionBatch(ctx, batchId, ProductionBatchStatusOnHold)
}

func ResumeBatch(ctx context.Context, batchId string) (*ProductionBatch, error) {
	return transitionBatch(ctx, batchId, ProductionBatchStatusInProgress)
}

// CancelBatch cancels a PLANNED or ON_HOLD batch. Consumed materials are not returned to stock.
func CancelBatch(ctx context.Context, batchId string) (*ProductionBatch, error) {
	return transitionBatch(ctx, batchId, ProductionBatchStatusCancelled)
}

func transitionBatch(ctx context.Context, batchId string, to ProductionBatchStatus) (*ProductionBatch, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	var batch *ProductionBatch
	err = withEntityLocks(ctx, []string{utils.LockKey(EntityProductionBatch, batchId)}, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			batch, err = utils.FetchModel[ProductionBatch](tx, "production batch", batchId, true)
			if err != nil {
				return err
			}
			from := batch.Status
			// IN_PROGRESS is entered from PLANNED only through ConsumeMaterials
			if !from.CanTransition(to) || (from == ProductionBatchStatusPlanned && to == ProductionBatchStatusInProgress) ||
				to == ProductionBatchStatusCompleted {
				return utils.NewBusinessRuleError("batch %s cannot move from %s to %s", batch.BatchNumber, from, to)
			}
			batch.Status = to
			if err := tx.Model(&ProductionBatch{}).Where("id = ?", batch.ID).UpdateColumn("status", to).Error; err != nil {
				return err
			}
			return createHistory(tx, actor, HistoryActionStatus, EntityProductionBatch, batch.ID,
				map[string]ProductionBatchStatus{"status": from}, map[string]ProductionBatchStatus{"status": to},
				"Batch "+batch.BatchNumber+" "+string(from)+" -> "+string(to))
		})
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func GetProductionBatch(ctx context.Context, id string) (*ProductionBatch, error) {
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[ProductionBatch](db, "production batch", id, false, "Consumptions")
}
