package models

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errDatabaseNotReady = errors.New("database not connected")

// Entity ids are UUID strings assigned on insert unless the caller set one.

func (item *InventoryItem) BeforeCreate(tx *gorm.DB) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return nil
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (item *PurchaseItem) BeforeCreate(tx *gorm.DB) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return nil
}

func (a *SupplierAdvance) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (m *ProductModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (b *BomItem) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (c *Charge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (b *ProductionBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// AfterFind keeps preloaded purchase lines in entry order.
func (p *Purchase) AfterFind(tx *gorm.DB) error {
	sort.SliceStable(p.Items, func(i, j int) bool { return p.Items[i].LineNo < p.Items[j].LineNo })
	return nil
}
