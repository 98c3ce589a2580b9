package models

type InventoryItemType string

const (
	InventoryItemTypeMaterial     InventoryItemType = "MATERIAL"
	InventoryItemTypeAccessory    InventoryItemType = "ACCESSORY"
	InventoryItemTypePackaging    InventoryItemType = "PACKAGING"
	InventoryItemTypeFinishedGood InventoryItemType = "FINISHED_GOOD"
	InventoryItemTypeOther        InventoryItemType = "OTHER"
)

func (t InventoryItemType) IsValid() bool {
	switch t {
	case InventoryItemTypeMaterial, InventoryItemTypeAccessory, InventoryItemTypePackaging,
		InventoryItemTypeFinishedGood, InventoryItemTypeOther:
		return true
	}
	return false
}

type PurchaseStatus string

const (
	PurchaseStatusDraft     PurchaseStatus = "DRAFT"
	PurchaseStatusOrdered   PurchaseStatus = "ORDERED"
	PurchaseStatusPartial   PurchaseStatus = "PARTIAL"
	PurchaseStatusReceived  PurchaseStatus = "RECEIVED"
	PurchaseStatusCancelled PurchaseStatus = "CANCELLED"
)

// purchaseTransitions lists the statuses reachable from each status.
var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseStatusDraft:   {PurchaseStatusOrdered, PurchaseStatusCancelled, PurchaseStatusPartial, PurchaseStatusReceived},
	PurchaseStatusOrdered: {PurchaseStatusPartial, PurchaseStatusReceived, PurchaseStatusCancelled},
	PurchaseStatusPartial: {PurchaseStatusPartial, PurchaseStatusReceived, PurchaseStatusCancelled},
}

func (s PurchaseStatus) CanTransition(to PurchaseStatus) bool {
	for _, next := range purchaseTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusReceived || s == PurchaseStatusCancelled
}

type TransactionDirection string

const (
	TransactionDirectionIn  TransactionDirection = "IN"
	TransactionDirectionOut TransactionDirection = "OUT"
)

type InventoryTransactionType string

const (
	InventoryTransactionTypePurchase    InventoryTransactionType = "PURCHASE"
	InventoryTransactionTypeConsumption InventoryTransactionType = "CONSUMPTION"
	InventoryTransactionTypeAdjustment  InventoryTransactionType = "ADJUSTMENT"
)

type LedgerReferenceType string

const (
	LedgerReferencePurchase        LedgerReferenceType = "PURCHASE"
	LedgerReferenceProductionBatch LedgerReferenceType = "PRODUCTION_BATCH"
	LedgerReferenceAdjustment      LedgerReferenceType = "ADJUSTMENT"
	LedgerReferenceOpeningStock    LedgerReferenceType = "OPENING_STOCK"
)

type SupplierAdvanceStatus string

const (
	SupplierAdvanceStatusPending SupplierAdvanceStatus = "PENDING"
	SupplierAdvanceStatusPartial SupplierAdvanceStatus = "PARTIAL"
	SupplierAdvanceStatusApplied SupplierAdvanceStatus = "APPLIED"
	// Declared for refunds; nothing transitions into it yet.
	SupplierAdvanceStatusRefunded SupplierAdvanceStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

type ProductionBatchStatus string

const (
	ProductionBatchStatusPlanned    ProductionBatchStatus = "PLANNED"
	ProductionBatchStatusInProgress ProductionBatchStatus = "IN_PROGRESS"
	ProductionBatchStatusOnHold     ProductionBatchStatus = "ON_HOLD"
	ProductionBatchStatusCompleted  ProductionBatchStatus = "COMPLETED"
	ProductionBatchStatusCancelled  ProductionBatchStatus = "CANCELLED"
)

var productionBatchTransitions = map[ProductionBatchStatus][]ProductionBatchStatus{
	ProductionBatchStatusPlanned:    {ProductionBatchStatusInProgress, ProductionBatchStatusCancelled},
	ProductionBatchStatusInProgress: {ProductionBatchStatusOnHold, ProductionBatchStatusCompleted},
	ProductionBatchStatusOnHold:     {ProductionBatchStatusInProgress, ProductionBatchStatusCancelled},
}

func (s ProductionBatchStatus) CanTransition(to ProductionBatchStatus) bool {
	for _, next := range productionBatchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type ChargeCategory string

const (
	ChargeCategoryRent      ChargeCategory = "RENT"
	ChargeCategoryUtilities ChargeCategory = "UTILITIES"
	ChargeCategorySalaries  ChargeCategory = "SALARIES"
	ChargeCategoryMarketing ChargeCategory = "MARKETING"
	ChargeCategoryEquipment ChargeCategory = "EQUIPMENT"
	ChargeCategoryTransport ChargeCategory = "TRANSPORT"
	ChargeCategoryOther     ChargeCategory = "OTHER"
)

type HistoryAction string

const (
	HistoryActionCreate   HistoryAction = "CREATE"
	HistoryActionUpdate   HistoryAction = "UPDATE"
	HistoryActionDelete   HistoryAction = "DELETE"
	HistoryActionStatus   HistoryAction = "STATUS"
	HistoryActionReceive  HistoryAction = "RECEIVE"
	HistoryActionApply    HistoryAction = "APPLY"
	HistoryActionAdjust   HistoryAction = "ADJUST"
	HistoryActionReserve  HistoryAction = "RESERVE"
	HistoryActionRelease  HistoryAction = "RELEASE"
	HistoryActionConsume  HistoryAction = "CONSUME"
	HistoryActionComplete HistoryAction = "COMPLETE"
	HistoryActionSnapshot HistoryAction = "SNAPSHOT"
)

// Entity type names used in audit rows, ledger events and lock keys.
const (
	EntityInventoryItem   = "inventory_item"
	EntityPurchase        = "purchase"
	EntitySupplierAdvance = "supplier_advance"
	EntityProductModel    = "product_model"
	EntityProductionBatch = "production_batch"
	EntityCharge          = "charge"
	EntityCostSnapshot    = "cost_snapshot"
)
