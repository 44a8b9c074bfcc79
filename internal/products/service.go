package products

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/emberline/storefront-backend/internal/docstore"
	"github.com/emberline/storefront-backend/internal/media"
	"github.com/emberline/storefront-backend/internal/thumbnails"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type documentReader interface {
	Get(ctx context.Context, key string) (*docstore.Document, error)
	List(ctx context.Context, category string, params pagination.Params) ([]docstore.Document, string, error)
	Categories(ctx context.Context) ([]string, error)
	UpdateImageURL(ctx context.Context, key, imageURL string) error
}

type mediaGateway interface {
	Resolve(ctx context.Context, imageRef string) media.Resolution
	Upload(ctx context.Context, blobName string, image []byte) (string, error)
}

// View is one catalog item shaped for the public read surface. ImageURL has
// already passed the release gate; ThumbnailURL is derived from it by naming
// convention and is only set for released images.
type View struct {
	ID           string          `json:"id"`
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	ImageURL     string          `json:"image_url"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Page is one page of views plus the cursor for the next one.
type Page struct {
	Items      []View `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// Service is the catalog read surface. Every returned image address has been
// through the release gate; embargoed and broken media degrade to the
// configured default without failing the request.
type Service struct {
	docs        documentReader
	media       mediaGateway
	logg        *logger.Logger
	parallelism int
}

func NewService(docs documentReader, mediaSvc mediaGateway, logg *logger.Logger, parallelism int) (*Service, error) {
	if docs == nil || mediaSvc == nil {
		return nil, fmt.Errorf("document reader and media gateway are required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if parallelism <= 0 {
		parallelism = 8
	}
	return &Service{docs: docs, media: mediaSvc, logg: logg, parallelism: parallelism}, nil
}

// List returns a page of catalog items, resolving each item's image through
// the release gate concurrently.
func (s *Service) List(ctx context.Context, category string, params pagination.Params) (*Page, error) {
	docs, next, err := s.docs.List(ctx, category, params)
	if err != nil {
		return nil, err
	}

	views := make([]View, len(docs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelism)
	for i := range docs {
		group.Go(func() error {
			views[i] = s.view(groupCtx, &docs[i])
			return nil
		})
	}
	_ = group.Wait()

	return &Page{Items: views, NextCursor: next}, nil
}

// Get returns a single catalog item by key.
func (s *Service) Get(ctx context.Context, key string) (*View, error) {
	doc, err := s.docs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	view := s.view(ctx, doc)
	return &view, nil
}

// Categories lists the distinct category partitions.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.docs.Categories(ctx)
}

func (s *Service) view(ctx context.Context, doc *docstore.Document) View {
	resolution := s.media.Resolve(ctx, doc.ImageURL)
	view := View{
		ID:          doc.Key,
		ProductID:   doc.ProductID,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       doc.Price,
		Category:    doc.Category,
		ImageURL:    resolution.URL,
		CreatedAt:   doc.CreatedAt,
	}
	if resolution.Released() {
		view.ThumbnailURL = thumbnails.ThumbURL(resolution.URL)
	}
	return view
}

// AttachImages walks an image directory and re-links each file to the catalog
// documents whose stored reference shares its name stem, uploading the new
// payload and rewriting the document address. Returns the number of documents
// updated; per-file failures are logged and skipped.
func (s *Service) AttachImages(ctx context.Context, images map[string][]byte) (int, error) {
	if len(images) == 0 {
		return 0, nil
	}

	byStem := map[string][]string{}
	cursor := ""
	for {
		docs, next, err := s.docs.List(ctx, "", pagination.Params{Limit: pagination.MaxLimit, Cursor: cursor})
		if err != nil {
			return 0, err
		}
		for _, doc := range docs {
			stem := nameStem(path.Base(doc.ImageURL))
			if stem != "" {
				byStem[stem] = append(byStem[stem], doc.Key)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	updated := 0
	for name, payload := range images {
		keys := byStem[nameStem(name)]
		if len(keys) == 0 {
			continue
		}
		address, err := s.media.Upload(ctx, name, payload)
		if err != nil {
			s.logg.Error(ctx, fmt.Sprintf("image %s not attached", name), err)
			continue
		}
		for _, key := range keys {
			if err := s.docs.UpdateImageURL(ctx, key, address); err != nil {
				s.logg.Error(ctx, fmt.Sprintf("document %s not updated for image %s", key, name), err)
				continue
			}
			updated++
		}
	}
	return updated, nil
}

// nameStem strips the extension and any query suffix from an image file name.
func nameStem(name string) string {
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
