package config

import (
	"context"
	"errors"

	"github.com/mmdatafocus/retail_backend/appctx"
	"gorm.io/gorm"
)

// ErrAppendOnlyTable is returned when a statement tries to rewrite an append-only table.
var ErrAppendOnlyTable = errors.New("append-only table: rows cannot be updated or deleted")

// appendOnlyTables lists tables whose rows are written once and never changed.
// ledger_events is absent on purpose: the dispatcher updates its publish metadata.
var appendOnlyTables = map[string]bool{
	"inventory_transactions":  true,
	"purchase_advances":       true,
	"production_consumptions": true,
	"histories":               true,
	"cost_snapshots":          true,
}

// LedgerGuardPlugin rejects UPDATE and DELETE statements against the append-only tables.
//
// NOTE:
// - This does NOT apply to Raw/Exec SQL. Those must respect the rule manually.
// - Maintenance jobs can bypass it explicitly via appctx.ContextKeySkipLedgerGuard.
type LedgerGuardPlugin struct{}

func NewLedgerGuardPlugin() *LedgerGuardPlugin { return &LedgerGuardPlugin{} }

func (p *LedgerGuardPlugin) Name() string { return "ledger_guard" }

func (p *LedgerGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("ledger_guard:update", ledgerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("ledger_guard:delete", ledgerGuardCallback); err != nil {
		return err
	}
	return nil
}

func ledgerGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if !StrictLedgerImmutability() {
		return
	}
	if shouldBypassLedgerGuard(db.Statement.Context) {
		return
	}
	table := db.Statement.Table
	if table == "" && db.Statement.Schema != nil {
		table = db.Statement.Schema.Table
	}
	if appendOnlyTables[table] {
		_ = db.AddError(ErrAppendOnlyTable)
	}
}

func shouldBypassLedgerGuard(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipLedgerGuard)
	return ok && v
}
