package utils

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator. Decimal fields validate as numbers,
// so tags like gt=0 and gte=0 work on them directly.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateInput runs struct validation and reports failures as a ValidationError with per-field details.
func ValidateInput(input any) error {
	if err := GetValidator().Struct(input); err != nil {
		return NewValidationError("invalid input", ProcessValidationErrors(err))
	}
	return nil
}

// ValidateUnique fails with ConflictError when another row of T already uses value in column.
func ValidateUnique[T any](tx *gorm.DB, column string, value interface{}, exceptId string) error {
	var model T
	var count int64
	q := tx.Model(&model).Where(column+" = ?", value)
	if exceptId != "" {
		q = q.Where("id <> ?", exceptId)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return NewConflictError("duplicate %s: %v", column, value)
	}
	return nil
}

// ResourceExists reports whether a row of T matches condition.
func ResourceExists[T any](tx *gorm.DB, condition string, value ...interface{}) (bool, error) {
	var model T
	var count int64
	if err := tx.Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
