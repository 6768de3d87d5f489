package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by domain repositories for context binding and the
// partial-update helper they share.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// UpdateByID applies a map-based partial update to the row with the given
// primary key and returns how many rows matched. Zero means no such row.
func (b Base) UpdateByID(ctx context.Context, model any, id string, fields map[string]any) (int64, error) {
	res := b.DB(ctx).Model(model).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}
