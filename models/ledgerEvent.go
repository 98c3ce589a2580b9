package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
)

// LedgerEvent is an outbox row written in the same transaction as the change it describes.
// Publishing happens after commit via the dispatcher.
type LedgerEvent struct {
	ID            int    `gorm:"primaryKey;autoIncrement;index:idx_outbox_dispatch,priority:3" json:"id,string"`
	EventType     string `gorm:"size:50;not null;index" json:"event_type"`
	ReferenceType string `gorm:"size:50;not null;index:idx_event_reference,priority:1" json:"reference_type"`
	ReferenceId   string `gorm:"size:36;not null;index:idx_event_reference,priority:2" json:"reference_id"`
	Payload       []byte `json:"payload"`
	// publish metadata
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToLedgerEventMessage(record LedgerEvent) config.LedgerEventMessage {
	return config.LedgerEventMessage{
		ID:            record.ID,
		EventType:     record.EventType,
		ReferenceType: record.ReferenceType,
		ReferenceId:   record.ReferenceId,
		OccurredAt:    record.CreatedAt,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}

type LedgerEventFilter struct {
	ReferenceType string
	ReferenceId   string
	PublishStatus string
	Limit         int
}

func ListLedgerEvents(ctx context.Context, filter LedgerEventFilter) ([]*LedgerEvent, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.NewInternalError(errDatabaseNotReady)
	}
	dbCtx := db.WithContext(ctx)
	if filter.ReferenceType != "" {
		dbCtx = dbCtx.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceId != "" {
		dbCtx = dbCtx.Where("reference_id = ?", filter.ReferenceId)
	}
	if filter.PublishStatus != "" {
		dbCtx = dbCtx.Where("publish_status = ?", filter.PublishStatus)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var results []*LedgerEvent
	if err := dbCtx.Order("id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// RequeueDeadLedgerEvents moves DEAD events back to PENDING with a fresh attempt budget.
func RequeueDeadLedgerEvents(ctx context.Context) (int64, error) {
	db := config.GetDB()
	if db == nil {
		return 0, utils.NewInternalError(errDatabaseNotReady)
	}
	res := db.WithContext(ctx).Model(&LedgerEvent{}).
		Where("publish_status = ?", OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"publish_status":   OutboxPublishStatusPending,
			"publish_attempts": 0,
			"next_attempt_at":  nil,
			"locked_at":        nil,
			"locked_by":        nil,
		})
	return res.RowsAffected, res.Error
}
