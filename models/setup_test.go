package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupLedger points the package at a fresh in-memory database and returns an attributed context.
func setupLedger(t *testing.T) context.Context {
	t.Helper()
	config.ResetSettings()
	t.Cleanup(config.ResetSettings)

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := config.OpenDatabase(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrateAll(db); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	config.SetDB(db)
	utils.SetEntityLocker(utils.NewLocalEntityLocker(5 * time.Second))
	t.Cleanup(func() {
		config.SetDB(nil)
		utils.SetEntityLocker(nil)
	})

	return utils.SetActorInContext(context.Background(), utils.Actor{Id: "u-1", Name: "Tester"})
}

func mustCreateItem(t *testing.T, ctx context.Context, sku string, itemType models.InventoryItemType, qty, cost string) *models.InventoryItem {
	t.Helper()
	item, err := models.CreateInventoryItem(ctx, &models.NewInventoryItem{
		Sku:             sku,
		Name:            sku,
		ItemType:        itemType,
		Unit:            "pc",
		OpeningQuantity: decimal.RequireFromString(qty),
		OpeningUnitCost: decimal.RequireFromString(cost),
	})
	if err != nil {
		t.Fatalf("CreateInventoryItem(%s): %v", sku, err)
	}
	return item
}

func mustGetItem(t *testing.T, ctx context.Context, id string) *models.InventoryItem {
	t.Helper()
	item, err := models.GetInventoryItem(ctx, id)
	if err != nil {
		t.Fatalf("GetInventoryItem: %v", err)
	}
	return item
}

func mustCreatePurchase(t *testing.T, ctx context.Context, supplierId string, lines ...models.NewPurchaseItem) *models.Purchase {
	t.Helper()
	p, err := models.CreatePurchase(ctx, &models.NewPurchase{SupplierId: supplierId, Items: lines})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	return p
}

func purchaseLine(itemId, qty, price string) models.NewPurchaseItem {
	return models.NewPurchaseItem{
		InventoryItemId: itemId,
		Quantity:        decimal.RequireFromString(qty),
		UnitPrice:       decimal.RequireFromString(price),
	}
}

func expectKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	if got := utils.KindOf(err); got != kind {
		t.Fatalf("expected %s, got %s (%v)", kind, got, err)
	}
}

func countRows(t *testing.T, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := config.GetDB().Model(model).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func dbFor(ctx context.Context) *gorm.DB {
	return config.GetDB().WithContext(ctx)
}
