package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SupplierAdvance is a prepayment to a supplier, consumed by applying it to that supplier's purchases.
// AmountUsed + AmountRemaining == Amount at all times.
type SupplierAdvance struct {
	ID              string                `gorm:"primaryKey;size:36" json:"id"`
	AdvanceNumber   string                `gorm:"size:32;not null;uniqueIndex" json:"advance_number"`
	SupplierId      string                `gorm:"size:36;not null;index" json:"supplier_id"`
	Amount          decimal.Decimal       `gorm:"type:decimal(20,2);not null" json:"amount"`
	AmountUsed      decimal.Decimal       `gorm:"type:decimal(20,2);not null;default:0" json:"amount_used"`
	AmountRemaining decimal.Decimal       `gorm:"type:decimal(20,2);not null" json:"amount_remaining"`
	Status          SupplierAdvanceStatus `gorm:"size:20;not null;index" json:"status"`
	PaymentMethod   PaymentMethod         `gorm:"size:20;not null" json:"payment_method"`
	PaymentDate     time.Time             `gorm:"not null" json:"payment_date"`
	Notes           string                `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

// PurchaseAdvance records one application of an advance to a purchase. Never mutated.
type PurchaseAdvance struct {
	ID         int             `gorm:"primaryKey;autoIncrement" json:"id,string"`
	PurchaseId string          `gorm:"size:36;not null;index" json:"purchase_id"`
	AdvanceId  string          `gorm:"size:36;not null;index" json:"advance_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	ActorId    string          `gorm:"size:64" json:"actor_id"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewSupplierAdvance struct {
	SupplierId    string          `json:"supplier_id" validate:"required,max=36"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,oneof=CASH BANK_TRANSFER CHECK CARD OTHER"`
	PaymentDate   *time.Time      `json:"payment_date"`
	Notes         string          `json:"notes"`
}

type ApplyAdvanceInput struct {
	PurchaseId string          `json:"purchase_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
}

type ApplyAdvanceResult struct {
	Advance         *SupplierAdvance `json:"advance"`
	Purchase        *Purchase        `json:"purchase"`
	PurchaseAdvance *PurchaseAdvance `json:"purchase_advance"`
}

type SupplierAdvanceFilter struct {
	SupplierId string
	Status     string
}

func (a *SupplierAdvance) isUsed() bool {
	return a.AmountUsed.IsPositive()
}

func (a *SupplierAdvance) useAmount(amount decimal.Decimal) error {
	if a.Status == SupplierAdvanceStatusRefunded {
		return utils.NewBusinessRuleError("advance %s is refunded", a.AdvanceNumber)
	}
	if amount.GreaterThan(a.AmountRemaining) {
		return utils.NewBusinessRuleError("balance insufficient: remaining %s, requested %s",
			a.AmountRemaining.StringFixed(2), amount.StringFixed(2))
	}
	a.AmountUsed = a.AmountUsed.Add(amount)
	a.AmountRemaining = a.AmountRemaining.Sub(amount)
	if a.AmountRemaining.IsPositive() {
		a.Status = SupplierAdvanceStatusPartial
	} else {
		a.Status = SupplierAdvanceStatusApplied
	}
	return nil
}

func CreateAdvance(ctx context.Context, input *NewSupplierAdvance) (*SupplierAdvance, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	amount := Round2(input.Amount)
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount must be positive", map[string]string{"amount": "gt=0"})
	}
	paymentDate := now()
	if input.PaymentDate != nil {
		paymentDate = input.PaymentDate.UTC()
	}

	advance := SupplierAdvance{
		SupplierId:      input.SupplierId,
		Amount:          amount,
		AmountUsed:      decimal.Zero,
		AmountRemaining: amount,
		Status:          SupplierAdvanceStatusPending,
		PaymentMethod:   input.PaymentMethod,
		PaymentDate:     paymentDate,
		Notes:           input.Notes,
	}
	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		number, err := utils.NextDocumentNumber[SupplierAdvance](ctx, tx, "ADV", "advance_number", paymentDate)
		if err != nil {
			return err
		}
		advance.AdvanceNumber = number
		if err := tx.Create(&advance).Error; err != nil {
			return err
		}
		if err := createHistory(tx, actor, HistoryActionCreate, EntitySupplierAdvance, advance.ID, nil, &advance,
			"Created advance "+advance.AdvanceNumber+" for "+advance.Amount.StringFixed(2)); err != nil {
			return err
		}
		return recordLedgerEvent(tx, "ADVANCE_CREATED", EntitySupplierAdvance, advance.ID, &advance)
	})
	if err != nil {
		return nil, err
	}
	return &advance, nil
}

// ApplyAdvance moves amount of an advance onto a purchase of the same supplier.
func ApplyAdvance(ctx context.Context, advanceId string, input *ApplyAdvanceInput) (*ApplyAdvanceResult, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	amount := Round2(input.Amount)
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount must be positive", map[string]string{"amount": "gt=0"})
	}

	lockKeys := []string{
		utils.LockKey(EntitySupplierAdvance, advanceId),
		utils.LockKey(EntityPurchase, input.PurchaseId),
	}
	var result *ApplyAdvanceResult
	err = withEntityLocks(ctx, lockKeys, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			advance, err := utils.FetchModel[SupplierAdvance](tx, "supplier advance", advanceId, true)
			if err != nil {
				return err
			}
			purchase, err := utils.FetchModel[Purchase](tx, "purchase", input.PurchaseId, true)
			if err != nil {
				return err
			}
			advanceBefore := *advance
			purchaseBefore := *purchase
			if err := advance.useAmount(amount); err != nil {
				return err
			}
			if purchase.SupplierId != advance.SupplierId {
				return utils.NewBusinessRuleError("supplier mismatch: advance %s belongs to supplier %s, purchase %s to supplier %s",
					advance.AdvanceNumber, advance.SupplierId, purchase.PurchaseNumber, purchase.SupplierId)
			}
			if purchase.Status == PurchaseStatusCancelled {
				return utils.NewBusinessRuleError("purchase %s is CANCELLED", purchase.PurchaseNumber)
			}
			if amount.GreaterThan(purchase.AmountDue) {
				return utils.NewBusinessRuleError("purchase balance insufficient: due %s, requested %s",
					purchase.AmountDue.StringFixed(2), amount.StringFixed(2))
			}
			purchase.AmountDue = purchase.AmountDue.Sub(amount)
			purchase.AdvanceApplied = purchase.AdvanceApplied.Add(amount)

			link := PurchaseAdvance{
				PurchaseId: purchase.ID,
				AdvanceId:  advance.ID,
				Amount:     amount,
				ActorId:    actor.Id,
			}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
			if err := tx.Model(&SupplierAdvance{}).Where("id = ?", advance.ID).Updates(map[string]interface{}{
				"amount_used":      advance.AmountUsed,
				"amount_remaining": advance.AmountRemaining,
				"status":           advance.Status,
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&Purchase{}).Where("id = ?", purchase.ID).Updates(map[string]interface{}{
				"amount_due":      purchase.AmountDue,
				"advance_applied": purchase.AdvanceApplied,
			}).Error; err != nil {
				return err
			}

			description := "Applied " + amount.StringFixed(2) + " of " + advance.AdvanceNumber + " to " + purchase.PurchaseNumber
			if err := createHistory(tx, actor, HistoryActionApply, EntitySupplierAdvance, advance.ID,
				map[string]interface{}{"advance": &advanceBefore, "purchase": &purchaseBefore},
				map[string]interface{}{"advance": advance, "purchase": purchase},
				description); err != nil {
				return err
			}
			result = &ApplyAdvanceResult{Advance: advance, Purchase: purchase, PurchaseAdvance: &link}
			return recordLedgerEvent(tx, "ADVANCE_APPLIED", EntitySupplierAdvance, advance.ID, result)
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteAdvance removes an advance that was never applied.
func DeleteAdvance(ctx context.Context, id string) (*SupplierAdvance, error) {
	actor, err := utils.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	var advance *SupplierAdvance
	err = withEntityLocks(ctx, []string{utils.LockKey(EntitySupplierAdvance, id)}, func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			advance, err = utils.FetchModel[SupplierAdvance](tx, "supplier advance", id, true)
			if err != nil {
				return err
			}
			if advance.isUsed() {
				return utils.NewBusinessRuleError("advance %s has %s applied and cannot be deleted",
					advance.AdvanceNumber, advance.AmountUsed.StringFixed(2))
			}
			if err := tx.Delete(&SupplierAdvance{}, "id = ?", advance.ID).Error; err != nil {
				return err
			}
			if err := createHistory(tx, actor, HistoryActionDelete, EntitySupplierAdvance, advance.ID, advance, nil,
				"Deleted advance "+advance.AdvanceNumber); err != nil {
				return err
			}
			return recordLedgerEvent(tx, "ADVANCE_DELETED", EntitySupplierAdvance, advance.ID, advance)
		})
	})
	if err != nil {
		return nil, err
	}
	return advance, nil
}

func GetAdvance(ctx context.Context, id string) (*SupplierAdvance, error) {
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[SupplierAdvance](db, "supplier advance", id, false)
}

func ListAdvances(ctx context.Context, filter SupplierAdvanceFilter) ([]*SupplierAdvance, error) {
	dbCtx, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*SupplierAdvance

	if filter.SupplierId != "" {
		dbCtx = dbCtx.Where("supplier_id = ?", filter.SupplierId)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if err := dbCtx.Order("payment_date DESC").Order("advance_number DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListPurchaseAdvances(ctx context.Context, purchaseId string) ([]*PurchaseAdvance, error) {
	db, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*PurchaseAdvance
	if err := db.Where("purchase_id = ?", purchaseId).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func sumAdvanceLinks(links []*PurchaseAdvance) decimal.Decimal {
	total := decimal.Zero
	for _, l := range links {
		total = total.Add(l.Amount)
	}
	return total
}
