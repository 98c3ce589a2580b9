package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

type productionFixture struct {
	fabric *models.InventoryItem
	model  *models.ProductModel
}

// newProductionFixture builds a model needing 2 units of fabric per unit with 5% waste.
// The fabric has 25 on hand at 10.00, 5 of it reserved.
func newProductionFixture(t *testing.T, ctx context.Context) productionFixture {
	t.Helper()
	fabric := mustCreateItem(t, ctx, "FAB-200", models.InventoryItemTypeMaterial, "25", "10")
	if _, err := models.ReserveInventory(ctx, fabric.ID, d("5")); err != nil {
		t.Fatalf("ReserveInventory: %v", err)
	}
	waste := d("1.05")
	model, err := models.CreateModel(ctx, &models.NewProductModel{
		Sku:            "TEE-001",
		Name:           "Basic tee",
		LaborCost:      d("5"),
		OtherCost:      d("2"),
		EstimatedUnits: d("100"),
		SellingPrice:   d("60"),
		BomItems: []models.NewBomItem{
			{InventoryItemId: fabric.ID, QuantityPerUnit: d("2"), WasteFactor: &waste},
		},
	})
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}
	for _, c := range []struct {
		category models.ChargeCategory
		amount   string
	}{
		{models.ChargeCategoryRent, "1000"},
		{models.ChargeCategoryMarketing, "500"},
	} {
		if _, err := models.CreateCharge(ctx, &models.NewCharge{Category: c.category, Amount: d(c.amount)}); err != nil {
			t.Fatalf("CreateCharge: %v", err)
		}
	}
	return productionFixture{fabric: fabric, model: model}
}

func mustPlanBatch(t *testing.T, ctx context.Context, modelId, planned string) *models.ProductionBatch {
	t.Helper()
	batch, err := models.CreateProductionBatch(ctx, &models.NewProductionBatch{ModelId: modelId, PlannedQty: d(planned)})
	if err != nil {
		t.Fatalf("CreateProductionBatch: %v", err)
	}
	return batch
}

func TestCheckMaterialAvailabilityReportsShortage(t *testing.T) {
	ctx := setupLedger(t)
	fx := newProductionFixture(t, ctx)

	report, err := models.CheckMaterialAvailability(ctx, fx.model.ID, d("10"))
	if err != nil {
		t.Fatalf("CheckMaterialAvailability: %v", err)
	}
	if report.CanProduce {
		t.Fatalf("expected canProduce false")
	}
	if len(report.Lines) != 1 || len(report.Shortages) != 1 {
		t.Fatalf("expected one line and one shortage, got %d and %d", len(report.Lines), len(report.Shortages))
	}
	s := report.Shortages[0]
	if !s.Required.Equal(d("21")) || !s.Available.Equal(d("20")) || !s.Shortage.Equal(d("1")) {
		t.Fatalf("unexpected shortage required %s available %s shortage %s", s.Required, s.Available, s.Shortage)
	}

	report, err = models.CheckMaterialAvailability(ctx, fx.model.ID, d("9"))
	if err != nil {
		t.Fatalf("CheckMaterialAvailability: %v", err)
	}
	if !report.CanProduce || len(report.Shortages) != 0 {
		t.Fatalf("expected 9 units to be producible, got %+v", report.Shortages)
	}

	_, err = models.CheckMaterialAvailability(ctx, fx.model.ID, decimal.Zero)
	expectKind(t, err, utils.KindValidation)
	_, err = models.CheckMaterialAvailability(ctx, "missing", d("1"))
	expectKind(t, err, utils.KindNotFound)
}

func TestConsumeMaterialsRequiresOverrideOnShortage(t *testing.T) {
	ctx := setupLedger(t)
	fx := newProductionFixture(t, ctx)
	batch := mustPlanBatch(t, ctx, fx.model.ID, "10")

	_, err := models.ConsumeMaterials(ctx, batch.ID, &models.ConsumeMaterialsInput{})
	expectKind(t, err, utils.KindBusinessRule)
	if appErr := utils.AsAppError(err); appErr.Details["FAB-200"] == "" {
		t.Fatalf("expected shortage details for FAB-200, got %v", appErr.Details)
	}
	if got := mustGetItem(t, ctx, fx.fabric.ID); !got.Quantity.Equal(d("25")) {
		t.Fatalf("rejected consumption changed stock to %s", got.Quantity)
	}

	started, err := models.ConsumeMaterials(ctx, batch.ID, &models.ConsumeMaterialsInput{OverrideAvailability: true})
	if err != nil {
		t.Fatalf("ConsumeMaterials with override: %v", err)
	}
	if started.Status != models.ProductionBatchStatusInProgress || !started.AvailabilityOverridden {
		t.Fatalf("expected IN_PROGRESS with override recorded, got %s %v", started.Status, started.AvailabilityOverridden)
	}
	if !started.MaterialsCost.Equal(d("210")) || started.StartedAt == nil {
		t.Fatalf("expected materials cost 210, got %s", started.MaterialsCost)
	}

	fabric := mustGetItem(t, ctx, fx.fabric.ID)
	if !fabric.Quantity.Equal(d("4")) || !fabric.AverageCost.Equal(d("10")) {
		t.Fatalf("expected 4 left at 10.00, got %s @ %s", fabric.Quantity, fabric.AverageCost)
	}
	entries, err := models.ListInventoryTransactions(ctx, models.InventoryTransactionFilter{
		ReferenceType: string(models.LedgerReferenceProductionBatch),
		ReferenceId:   batch.ID,
	})
	if err != nil {
		t.Fatalf("ListInventoryTransactions: %v", err)
	}
	if len(entries) != 1 || entries[0].Direction != models.TransactionDirectionOut || !entries[0].Quantity.Equal(d("21")) {
		t.Fatalf("expected one OUT row of 21, got %+v", entries)
	}

	reloaded, err := models.GetProductionBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetProductionBatch: %v", err)
	}
	if len(reloaded.Consumptions) != 1 || !reloaded.Consumptions[0].UnitCostAtConsumption.Equal(d("10")) {
		t.Fatalf("unexpected consumptions %+v", reloaded.Consumptions)
	}

	_, err = models.ConsumeMaterials(ctx, batch.ID, &models.ConsumeMaterialsInput{OverrideAvailability: true})
	expectKind(t, err, utils.KindBusinessRule)
}

func TestConsumeMaterialsNeverDrivesStockNegative(t *testing.T) {
	ctx := setupLedger(t)
	fx := newProductionFixture(t, ctx)
	batch := mustPlanBatch(t, ctx, fx.model.ID, "20")

	_, err := models.ConsumeMaterials(ctx, batch.ID, &models.ConsumeMaterialsInput{OverrideAvailability: true})
	expectKind(t, err, utils.KindBusinessRule)
	if got := mustGetItem(t, ctx, fx.fabric.ID); !got.Quantity.Equal(d("25")) {
		t.Fatalf("expected stock untouched, got %s", got.Quantity)
	}
}

func TestCompleteBatchCosts(t *testing.T) {
	ctx := setupLedger(t)
	fx := newProductionFixture(t, ctx)
	batch := mustPlanBatch(t, ctx, fx.model.ID, "10")
	if _, err := models.ConsumeMaterials(ctx, batch.ID, &models.ConsumeMaterialsInput{OverrideAvailability: true}); err != nil {
		t.Fatalf("ConsumeMaterials: %v", err)
	}

	_, err := models.CompleteBatch(ctx, batch.ID, &models.CompleteBatchInput{ProducedQty: d("11")})
	expectKind(t, err, utils.KindBusinessRule)

	done, err := models.CompleteBatch(ctx, batch.ID, &models.CompleteBatchInput{ProducedQty: d("10")})
	if err != nil {
		t.Fatalf("CompleteBatch: %v", err)
	}
	// labor 5 x 10, overhead (2 + 1000/100) x 10, materials 210
	if !done.LaborCost.Equal(d("50")) || !done.OverheadCost.Equal(d("120")) || !done.TotalCost.Equal(d("380")) {
		t.Fatalf("unexpected costs labor %s overhead %s total %s", done.LaborCost, done.OverheadCost, done.TotalCost)
	}
	if done.CostPerUnit == nil || !done.CostPerUnit.Equal(d("38")) {
		t.Fatalf("expected cost per unit 38, got %v", done.CostPerUnit)
	}
	if done.Status != models.ProductionBatchStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("expected COMPLETED, got %s", done.Status)
	}

	_, err = models.CompleteBatch(ctx, batch.ID, &models.CompleteBatchInput{ProducedQty: d("10")})
	expectKind(t, err, utils.KindBusinessRule)
}

func TestCompleteBatchOverageAndZeroOutput(t *testing.T) {
	ctx := setupLedger(t)
	fx := newProductionFixture(t, ctx)

	over := mustPlanBatch(t, ctx, fx.model.ID, "5")
	if _, err := models.ConsumeMaterials(ctx, over.ID, nil); err != nil {
		t.Fatalf("ConsumeMaterials: %v", err)
	}
	labor := d("40")
	done, err := models.CompleteBatch(ctx, over.ID, &models.CompleteBatchInput{
		ProducedQty:       d("6"),
		LaborCostOverride: &labor,
		AcceptOverage:     true,
	})
	if err != nil {
		t.Fatalf("CompleteBatch: %v", err)
	}
	if !done.OverProduced.Equal(d("1")) || !done.LaborCost.Equal(d("40")) {
		t.Fatalf("expected overage 1 and labor 40, got %s and %s", done.OverProduced, done.LaborCost)
	}

	scrapped := mustPlanBatch(t, ctx, fx.model.ID, "1")
	if _, err := models.ConsumeMaterials(ctx, scrapped.ID, nil); err != nil {
		t.Fatalf("ConsumeMaterials: %v", err)
	}
	zero, err := models.CompleteBatch(ctx, scrapped.ID, &models.CompleteBatchInput{ProducedQty: decimal.Zero})
	if err != nil {
		t.Fatalf("CompleteBatch: %v", err)
	}
	if zero.CostPerUnit != nil {
		t.Fatalf("expected no cost per unit for zero output, got %s", zero.CostPerUnit)
	}
	if !zero.TotalCost.Equal(zero.MaterialsCost) {
		t.Fatalf("expected total to equal materials %s, got %s", zero.MaterialsCost, zero.TotalCost)
	}
}

func TestBatchStatusTransitions(t *testing.T) {
	ctx := setupLedger(t)
	fx := newProductionFixture(t, ctx)

	planned := mustPlanBatch(t, ctx, fx.model.ID, "1")
	_, err := models.ResumeBatch(ctx, planned.ID)
	expectKind(t, err, utils.KindBusinessRule)
	_, err = models.HoldBatch(ctx, planned.ID)
	expectKind(t, err, utils.KindBusinessRule)
	if _, err := models.CancelBatch(ctx, planned.ID); err != nil {
		t.Fatalf("CancelBatch: %v", err)
	}
	_, err = models.ConsumeMaterials(ctx, planned.ID, nil)
	expectKind(t, err, utils.KindBusinessRule)

	running := mustPlanBatch(t, ctx, fx.model.ID, "1")
	if _, err := models.ConsumeMaterials(ctx, running.ID, nil); err != nil {
		t.Fatalf("ConsumeMaterials: %v", err)
	}
	_, err = models.CancelBatch(ctx, running.ID)
	expectKind(t, err, utils.KindBusinessRule)

	held, err := models.HoldBatch(ctx, running.ID)
	if err != nil || held.Status != models.ProductionBatchStatusOnHold {
		t.Fatalf("HoldBatch: %v", err)
	}
	_, err = models.CompleteBatch(ctx, running.ID, &models.CompleteBatchInput{ProducedQty: d("1")})
	expectKind(t, err, utils.KindBusinessRule)

	resumed, err := models.ResumeBatch(ctx, running.ID)
	if err != nil || resumed.Status != models.ProductionBatchStatusInProgress {
		t.Fatalf("ResumeBatch: %v", err)
	}
	if _, err := models.CompleteBatch(ctx, running.ID, &models.CompleteBatchInput{ProducedQty: d("1")}); err != nil {
		t.Fatalf("CompleteBatch: %v", err)
	}

	histories, err := models.GetHistories(ctx, models.HistoryFilter{EntityType: models.EntityProductionBatch, EntityId: running.ID})
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	// create, consume, hold, resume, complete
	if len(histories) != 5 {
		t.Fatalf("expected 5 audit rows, got %d", len(histories))
	}
}

func TestConsumeRejectsModelWithoutBom(t *testing.T) {
	ctx := setupLedger(t)
	model, err := models.CreateModel(ctx, &models.NewProductModel{Sku: "EMPTY-1", Name: "No recipe"})
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}
	report, err := models.CheckMaterialAvailability(ctx, model.ID, d("3"))
	if err != nil {
		t.Fatalf("CheckMaterialAvailability: %v", err)
	}
	if !report.CanProduce || len(report.Lines) != 0 {
		t.Fatalf("expected an empty producible report, got %+v", report)
	}
	batch := mustPlanBatch(t, ctx, model.ID, "3")
	_, err = models.ConsumeMaterials(ctx, batch.ID, nil)
	expectKind(t, err, utils.KindBusinessRule)
}

func TestCostBreakdownAndSnapshot(t *testing.T) {
	ctx := setupLedger(t)
	fx := newProductionFixture(t, ctx)

	b, err := models.GetCostBreakdown(ctx, fx.model.ID)
	if err != nil {
		t.Fatalf("GetCostBreakdown: %v", err)
	}
	if len(b.Lines) != 1 || !b.Lines[0].LineCost.Equal(d("21")) {
		t.Fatalf("unexpected lines %+v", b.Lines)
	}
	if !b.FabricCost.Equal(d("21")) || !b.MaterialCost.Equal(d("21")) {
		t.Fatalf("unexpected material costs fabric %s total %s", b.FabricCost, b.MaterialCost)
	}
	// only RENT is an overhead category by default
	if len(b.Overhead) != 1 || b.Overhead[0].Category != models.ChargeCategoryRent || !b.OverheadCost.Equal(d("10")) {
		t.Fatalf("unexpected overhead %+v (%s)", b.Overhead, b.OverheadCost)
	}
	if !b.TotalCost.Equal(d("38")) || !b.Margin.Equal(d("22")) || !b.MarginPercent.Equal(d("36.67")) {
		t.Fatalf("unexpected totals cost %s margin %s (%s%%)", b.TotalCost, b.Margin, b.MarginPercent)
	}
	wantPrices := []string{"55", "64", "76"}
	if len(b.SuggestedPrices) != len(wantPrices) {
		t.Fatalf("expected %d suggested prices, got %d", len(wantPrices), len(b.SuggestedPrices))
	}
	for i, want := range wantPrices {
		if !b.SuggestedPrices[i].Price.Equal(d(want)) {
			t.Fatalf("suggested price %d: want %s, got %s", i, want, b.SuggestedPrices[i].Price)
		}
	}

	snapshot, err := models.CreateCostSnapshot(ctx, fx.model.ID, "before price change")
	if err != nil {
		t.Fatalf("CreateCostSnapshot: %v", err)
	}
	if !snapshot.TotalCost.Equal(d("38")) || snapshot.ActorId != "u-1" || snapshot.Breakdown == "" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	snapshots, err := models.ListCostSnapshots(ctx, fx.model.ID)
	if err != nil || len(snapshots) != 1 {
		t.Fatalf("expected one snapshot, got %d (%v)", len(snapshots), err)
	}
}

func TestOverheadIsZeroWithoutEstimatedUnits(t *testing.T) {
	ctx := setupLedger(t)
	if _, err := models.CreateCharge(ctx, &models.NewCharge{Category: models.ChargeCategoryRent, Amount: d("1000")}); err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	model, err := models.CreateModel(ctx, &models.NewProductModel{Sku: "TEE-002", Name: "Tee", LaborCost: d("3")})
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}
	b, err := models.GetCostBreakdown(ctx, model.ID)
	if err != nil {
		t.Fatalf("GetCostBreakdown: %v", err)
	}
	if !b.OverheadCost.IsZero() || !b.TotalCost.Equal(d("3")) {
		t.Fatalf("expected no overhead and total 3, got %s and %s", b.OverheadCost, b.TotalCost)
	}
	if !b.MarginPercent.IsZero() {
		t.Fatalf("expected zero margin percent without a selling price, got %s", b.MarginPercent)
	}
}
