package docstore

import (
	"context"
	"strings"

	"github.com/emberline/storefront-backend/internal/repo"
	pkgdb "github.com/emberline/storefront-backend/pkg/db"
	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
	"github.com/emberline/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository persists catalog documents. Writes are issued concurrently by
// the ingestion pipeline; each Create is independent and a duplicate key is
// reported as a conflict, never as a panic or batch abort.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a single document.
func (r *Repository) Create(ctx context.Context, doc *Document) error {
	if doc == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "document is required")
	}
	if strings.TrimSpace(doc.Key) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "document key is required")
	}
	if err := r.DB(ctx).Create(doc).Error; err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "document already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create document")
	}
	return nil
}

// Get fetches a document by its string key.
func (r *Repository) Get(ctx context.Context, key string) (*Document, error) {
	var doc Document
	err := r.DB(ctx).Where("id = ?", key).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get document")
	}
	return &doc, nil
}

// List returns a page of documents, optionally filtered to one category
// partition, newest first with the key as tie-breaker.
func (r *Repository) List(ctx context.Context, category string, params pagination.Params) ([]Document, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.DB(ctx).Model(&Document{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.Key,
		)
	}

	var docs []Document
	err = query.
		Order("created_at DESC").
		Order("id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&docs).Error
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list documents")
	}

	next := ""
	if len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, Key: last.Key})
	}
	return docs, next, nil
}

// UpdateImageURL rewrites the stored image address for one document.
func (r *Repository) UpdateImageURL(ctx context.Context, key, imageURL string) error {
	result := r.DB(ctx).
		Model(&Document{}).
		Where("id = ?", key).
		Update("image_url", imageURL)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update image url")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	return nil
}

// Categories returns the distinct partition labels present in the collection.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.DB(ctx).
		Model(&Document{}).
		Distinct("category").
		Where("category <> ''").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}
