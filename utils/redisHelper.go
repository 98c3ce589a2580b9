package utils

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"gorm.io/gorm"
)

var (
	mutex      sync.Mutex
	lastIssued = map[string]int64{}
)

// NextDocumentNumber issues the next "<prefix>-<year>-<seq>" number for column of T.
// The sequence comes from a Redis counter when Redis is connected and from the table's
// current maximum otherwise; either way the number is checked against the table on tx.
// The unique index on column is the final guard.
func NextDocumentNumber[T any](ctx context.Context, tx *gorm.DB, prefix string, column string, at time.Time) (string, error) {
	var model T
	mutex.Lock()
	defer mutex.Unlock()

	yearPrefix := fmt.Sprintf("%s-%d-", prefix, at.Year())
	cacheKey := "seq:" + strings.ToLower(prefix) + ":" + strconv.Itoa(at.Year())

	dbMax, err := maxDocumentSeq(tx, &model, column, yearPrefix)
	if err != nil {
		return "", err
	}

	for {
		seqNo, ok, err := config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return "", err
		}
		if !ok {
			seqNo = dbMax + 1
			if last := lastIssued[cacheKey]; last >= seqNo {
				seqNo = last + 1
			}
		} else if seqNo <= dbMax {
			// counter lost or behind the table
			seqNo = dbMax + 1
			if err := config.SeedRedisCounter(ctx, cacheKey, seqNo); err != nil {
				return "", err
			}
		}
		lastIssued[cacheKey] = seqNo

		number := fmt.Sprintf("%s%05d", yearPrefix, seqNo)
		if err := ValidateUnique[T](tx, column, number, ""); err == nil {
			return number, nil
		} else if !IsKind(err, KindConflict) {
			return "", err
		}
		dbMax = seqNo
	}
}

// maxDocumentSeq reads the highest number issued for yearPrefix. Sequences are zero-padded,
// so the longest, then lexically greatest, value is the maximum.
func maxDocumentSeq(tx *gorm.DB, model any, column string, yearPrefix string) (int64, error) {
	var latest []string
	err := tx.Model(model).
		Where(column+" LIKE ?", yearPrefix+"%").
		Order("LENGTH(" + column + ") DESC").
		Order(column + " DESC").
		Limit(1).
		Pluck(column, &latest).Error
	if err != nil {
		return 0, err
	}
	if len(latest) == 0 {
		return 0, nil
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(latest[0], yearPrefix), 10, 64)
	if err != nil {
		return 0, nil
	}
	return seq, nil
}
