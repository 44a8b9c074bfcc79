package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the GORM handle shared by the concrete repositories.
type Base struct {
	db *gorm.DB
}

// NewBase wraps an open GORM connection for embedding.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds the connection to ctx when one is given.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
