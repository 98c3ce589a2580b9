package models_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
)

func TestQuantitiesThatRoundToZeroAreRejected(t *testing.T) {
	ctx := setupLedger(t)
	item := mustCreateItem(t, ctx, "FAB-301", models.InventoryItemTypeMaterial, "0", "0")

	_, err := models.CreatePurchase(ctx, &models.NewPurchase{
		SupplierId:  "sup-1",
		Items:       []models.NewPurchaseItem{purchaseLine(item.ID, "0.004", "100")},
		AutoReceive: true,
	})
	expectKind(t, err, utils.KindValidation)
	if n := countRows(t, &models.Purchase{}, "supplier_id = ?", "sup-1"); n != 0 {
		t.Fatalf("expected no purchase, got %d", n)
	}
	if n := countRows(t, &models.InventoryTransaction{}, "inventory_item_id = ?", item.ID); n != 0 {
		t.Fatalf("expected no ledger rows, got %d", n)
	}

	_, err = models.CreateProductionBatch(ctx, &models.NewProductionBatch{ModelId: "any", PlannedQty: d("0.004")})
	expectKind(t, err, utils.KindValidation)

	_, err = models.AddBomItem(ctx, "any", &models.NewBomItem{InventoryItemId: item.ID, QuantityPerUnit: d("0.00004")})
	expectKind(t, err, utils.KindValidation)

	_, err = models.CreateModel(ctx, &models.NewProductModel{
		Sku:      "TEE-301",
		Name:     "Tee",
		BomItems: []models.NewBomItem{{InventoryItemId: item.ID, QuantityPerUnit: d("0.00004")}},
	})
	expectKind(t, err, utils.KindValidation)
}

func TestUpdatePurchaseOnlyWhileDraft(t *testing.T) {
	ctx := setupLedger(t)
	fabric := mustCreateItem(t, ctx, "FAB-302", models.InventoryItemTypeMaterial, "0", "0")
	thread := mustCreateItem(t, ctx, "THR-302", models.InventoryItemTypeAccessory, "0", "0")
	purchase := mustCreatePurchase(t, ctx, "sup-1", purchaseLine(fabric.ID, "10", "100"))

	updated, err := models.UpdatePurchase(ctx, purchase.ID, &models.NewPurchase{
		SupplierId:   "sup-1",
		Items:        []models.NewPurchaseItem{purchaseLine(fabric.ID, "4", "100"), purchaseLine(thread.ID, "3", "2.5")},
		ShippingCost: d("20"),
	})
	if err != nil {
		t.Fatalf("UpdatePurchase: %v", err)
	}
	if len(updated.Items) != 2 || !updated.Subtotal.Equal(d("407.5")) || !updated.TotalAmount.Equal(d("427.5")) || !updated.AmountDue.Equal(d("427.5")) {
		t.Fatalf("unexpected totals after edit: %d lines, subtotal %s total %s due %s",
			len(updated.Items), updated.Subtotal, updated.TotalAmount, updated.AmountDue)
	}
	if n := countRows(t, &models.PurchaseItem{}, "purchase_id = ?", purchase.ID); n != 2 {
		t.Fatalf("expected lines to be replaced, got %d rows", n)
	}

	if _, err := models.MarkPurchaseOrdered(ctx, purchase.ID); err != nil {
		t.Fatalf("MarkPurchaseOrdered: %v", err)
	}
	_, err = models.UpdatePurchase(ctx, purchase.ID, &models.NewPurchase{
		SupplierId: "sup-1",
		Items:      []models.NewPurchaseItem{purchaseLine(fabric.ID, "1", "100")},
	})
	expectKind(t, err, utils.KindBusinessRule)
	_, err = models.DeletePurchase(ctx, purchase.ID)
	expectKind(t, err, utils.KindBusinessRule)
}

func TestDeletePurchaseRemovesItsLines(t *testing.T) {
	ctx := setupLedger(t)
	item := mustCreateItem(t, ctx, "FAB-303", models.InventoryItemTypeMaterial, "0", "0")
	purchase := mustCreatePurchase(t, ctx, "sup-1", purchaseLine(item.ID, "2", "10"), purchaseLine(item.ID, "3", "12"))

	if _, err := models.DeletePurchase(ctx, purchase.ID); err != nil {
		t.Fatalf("DeletePurchase: %v", err)
	}
	_, err := models.GetPurchase(ctx, purchase.ID)
	expectKind(t, err, utils.KindNotFound)
	if n := countRows(t, &models.PurchaseItem{}, "purchase_id = ?", purchase.ID); n != 0 {
		t.Fatalf("expected lines to be deleted, got %d", n)
	}
	histories, err := models.GetHistories(ctx, models.HistoryFilter{EntityType: models.EntityPurchase, EntityId: purchase.ID})
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("expected create and delete history rows, got %d", len(histories))
	}
}

func TestOrderedPurchaseIsReceivedInSteps(t *testing.T) {
	ctx := setupLedger(t)
	item := mustCreateItem(t, ctx, "FAB-304", models.InventoryItemTypeMaterial, "0", "0")
	purchase := mustCreatePurchase(t, ctx, "sup-1", purchaseLine(item.ID, "10", "50"))

	ordered, err := models.MarkPurchaseOrdered(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("MarkPurchaseOrdered: %v", err)
	}
	if ordered.Status != models.PurchaseStatusOrdered {
		t.Fatalf("expected ORDERED, got %s", ordered.Status)
	}

	steps := []struct {
		qty  string
		want models.PurchaseStatus
	}{
		{"4", models.PurchaseStatusPartial},
		{"6", models.PurchaseStatusReceived},
	}
	for _, step := range steps {
		result, err := models.ReceivePurchase(ctx, purchase.ID, receiveInput(receiveLine(purchase.Items[0].ID, step.qty)))
		if err != nil {
			t.Fatalf("ReceivePurchase(%s): %v", step.qty, err)
		}
		if result.Purchase.Status != step.want {
			t.Fatalf("after receiving %s expected %s, got %s", step.qty, step.want, result.Purchase.Status)
		}
	}

	_, err = models.MarkPurchaseOrdered(ctx, purchase.ID)
	expectKind(t, err, utils.KindBusinessRule)
	if got := mustGetItem(t, ctx, item.ID); !got.Quantity.Equal(d("10")) || !got.AverageCost.Equal(d("50")) {
		t.Fatalf("expected 10 @ 50, got %s @ %s", got.Quantity, got.AverageCost)
	}
}

func TestConcurrentReceiptsOnOneLine(t *testing.T) {
	ctx := setupLedger(t)
	item := mustCreateItem(t, ctx, "FAB-305", models.InventoryItemTypeMaterial, "0", "0")
	purchase := mustCreatePurchase(t, ctx, "sup-1", purchaseLine(item.ID, "10", "100"))
	lineId := purchase.Items[0].ID

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = models.ReceivePurchase(ctx, purchase.ID, receiveInput(receiveLine(lineId, "3")))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case utils.IsKind(err, utils.KindBusinessRule):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected 3 receipts to fit in 10, got %d", succeeded)
	}

	got := mustGetItem(t, ctx, item.ID)
	if !got.Quantity.Equal(d("9")) {
		t.Fatalf("expected quantity 9, got %s", got.Quantity)
	}
	after, err := models.GetPurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("GetPurchase: %v", err)
	}
	if !after.Items[0].QuantityReceived.Equal(d("9")) || after.Status != models.PurchaseStatusPartial {
		t.Fatalf("expected 9 received and PARTIAL, got %s %s", after.Items[0].QuantityReceived, after.Status)
	}
	if n := countRows(t, &models.InventoryTransaction{}, "inventory_item_id = ?", item.ID); n != 3 {
		t.Fatalf("expected 3 ledger rows, got %d", n)
	}
}

func TestReadsWithoutDatabaseReturnInternalError(t *testing.T) {
	config.SetDB(nil)
	ctx := utils.SetActorInContext(context.Background(), utils.Actor{Id: "u-1", Name: "Tester"})

	reads := map[string]func() error{
		"GetPurchase": func() error { _, err := models.GetPurchase(ctx, "p-1"); return err },
		"ListPurchases": func() error {
			_, err := models.ListPurchases(ctx, models.PurchaseFilter{})
			return err
		},
		"PreviewReceive": func() error {
			_, err := models.PreviewReceive(ctx, "p-1", receiveInput(receiveLine("l-1", "1")))
			return err
		},
		"CheckMaterialAvailability": func() error {
			_, err := models.CheckMaterialAvailability(ctx, "m-1", d("1"))
			return err
		},
		"ReplayInventoryItem": func() error { _, err := models.ReplayInventoryItem(ctx, "i-1"); return err },
		"ListAdvances": func() error {
			_, err := models.ListAdvances(ctx, models.SupplierAdvanceFilter{})
			return err
		},
	}
	for name, read := range reads {
		err := read()
		if !utils.IsKind(err, utils.KindInternal) {
			t.Fatalf("%s: expected internal error, got %v", name, err)
		}
	}
}
