package utils

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// FetchModel loads one row by primary key on tx.
// forUpdate takes a row lock; the sqlite driver ignores it.
// Missing rows come back as NotFoundError naming entity.
func FetchModel[T any](tx *gorm.DB, entity string, id string, forUpdate bool, associations ...string) (*T, error) {
	q := tx
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	if err := q.Where("id = ?", id).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(entity, id)
		}
		return nil, err
	}
	return &result, nil
}

// FetchModelsByIds loads rows keyed by id. Missing ids are simply absent from the map.
func FetchModelsByIds[T any](tx *gorm.DB, ids []string, forUpdate bool, key func(*T) string) (map[string]*T, error) {
	out := make(map[string]*T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := tx
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []*T
	if err := q.Where("id IN ?", UniqueSlice(ids)).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[key(r)] = r
	}
	return out, nil
}
