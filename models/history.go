package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

// History is the audit log: one row per successful mutating call.
type History struct {
	ID          int           `gorm:"primaryKey;autoIncrement" json:"id,string"`
	Action      HistoryAction `gorm:"size:20;not null;index" json:"action"`
	EntityType  string        `gorm:"size:50;not null;index:idx_history_entity,priority:1" json:"entity_type"`
	EntityId    string        `gorm:"size:36;not null;index:idx_history_entity,priority:2" json:"entity_id"`
	ActorId     string        `gorm:"size:64;not null;index" json:"actor_id"`
	ActorName   string        `gorm:"size:100" json:"actor_name"`
	Before      string        `gorm:"type:text" json:"before"`
	After       string        `gorm:"type:text" json:"after"`
	Description string        `gorm:"type:text" json:"description"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

type HistoryFilter struct {
	EntityType string
	EntityId   string
	ActorId    string
	Action     string
	Limit      int
}

func createHistory(tx *gorm.DB,
	actor utils.Actor,
	action HistoryAction,
	entityType string,
	entityId string,
	before interface{},
	after interface{},
	description string) error {

	history := History{
		Action:      action,
		EntityType:  entityType,
		EntityId:    entityId,
		ActorId:     actor.Id,
		ActorName:   actor.Name,
		Description: description,
	}
	if before != nil {
		b, err := json.Marshal(before)
		if err != nil {
			return err
		}
		history.Before = string(b)
	}
	if after != nil {
		a, err := json.Marshal(after)
		if err != nil {
			return err
		}
		history.After = string(a)
	}
	return tx.Create(&history).Error
}

func GetHistories(ctx context.Context, filter HistoryFilter) ([]*History, error) {
	dbCtx, err := dbWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*History

	if filter.EntityType != "" {
		dbCtx = dbCtx.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityId != "" {
		dbCtx = dbCtx.Where("entity_id = ?", filter.EntityId)
	}
	if filter.ActorId != "" {
		dbCtx = dbCtx.Where("actor_id = ?", filter.ActorId)
	}
	if filter.Action != "" {
		dbCtx = dbCtx.Where("action = ?", filter.Action)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if err := dbCtx.Order("id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
