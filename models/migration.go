package models

import (
	"log"

	"github.com/mmdatafocus/retail_backend/config"
	"gorm.io/gorm"
)

// AutoMigrateAll creates or updates every ledger table on db.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&InventoryItem{}, &InventoryTransaction{},
		&Purchase{}, &PurchaseItem{},
		&SupplierAdvance{}, &PurchaseAdvance{},
		&ProductModel{}, &BomItem{}, &Charge{},
		&ProductionBatch{}, &ProductionConsumption{},
		&CostSnapshot{},
		&History{},
		&LedgerEvent{},
		&ReconciliationReport{},
	)
}

func MigrateTable() {
	if err := AutoMigrateAll(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
