package docstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document is one catalog record in the schemaless collection. The collection
// is keyed by the string Key and partitioned by Category; the numeric product
// identifier is preserved as its own field so downstream consumers can keep
// using integer ids.
type Document struct {
	Key         string          `gorm:"column:id;primaryKey;size:64" json:"id"`
	ProductID   int64           `gorm:"column:product_id;not null" json:"product_id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Category    string          `gorm:"size:128;index:idx_catalog_documents_category" json:"category"`
	ImageURL    string          `gorm:"column:image_url" json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName pins the collection name.
func (Document) TableName() string {
	return "catalog_documents"
}
