package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loadOrCreate loads the row whose unique column equals value into dst and
// inserts fresh when there is none.
func loadOrCreate[T any](tx *gorm.DB, dst *T, fresh T, column string, value any) error {
	res := tx.Where(column+" = ?", value).Limit(1).Find(dst)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return createOrReload(tx, dst, fresh, column, value)
}

// createOrReload inserts fresh unless a row with the same unique key already
// exists, in which case the stored row wins and is read back into dst.
func createOrReload[T any](tx *gorm.DB, dst *T, fresh T, column string, value any) error {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: column}},
		DoNothing: true,
	}).Create(&fresh)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		*dst = fresh
		return nil
	}
	return tx.Where(column+" = ?", value).First(dst).Error
}
