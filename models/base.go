package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

// runInTransaction is the unit of work every ledger mutation goes through:
// fn performs all reads and writes on tx, and the whole set commits or rolls back.
// fn must use tx only; the shared handle may have a single connection.
func runInTransaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	db := config.GetDB()
	if db == nil {
		return utils.NewInternalError(errDatabaseNotReady)
	}
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	// IMPORTANT: always rollback on early-return or panic to avoid leaking DB locks.
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback().Error
		return err
	}
	return tx.Commit().Error
}

// dbWithContext returns the shared handle bound to ctx, or an internal error before the database connects.
func dbWithContext(ctx context.Context) (*gorm.DB, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.NewInternalError(errDatabaseNotReady)
	}
	return db.WithContext(ctx), nil
}

// withEntityLocks holds the entity locks for keys while fn runs.
func withEntityLocks(ctx context.Context, keys []string, fn func() error) error {
	release, err := utils.LockEntities(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// recordLedgerEvent writes the event row inside the caller's transaction.
// Publishing is performed by the outbox dispatcher after commit.
func recordLedgerEvent(tx *gorm.DB, eventType string, referenceType string, referenceId string, payload interface{}) error {
	if !config.LedgerEventsEnabled() {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := LedgerEvent{
		EventType:     eventType,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Payload:       data,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(tx.Statement.Context),
	}
	return tx.Create(&event).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

func boolPtr(b bool) *bool {
	return &b
}
