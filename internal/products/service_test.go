package products

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/emberline/storefront-backend/internal/docstore"
	"github.com/emberline/storefront-backend/internal/media"
	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/pagination"
	"github.com/shopspring/decimal"
)

const fallbackAddr = "https://store.example/assets/default.png?sig=pub"

type stubDocs struct {
	docs    []docstore.Document
	updates map[string]string
}

func (s *stubDocs) Get(_ context.Context, key string) (*docstore.Document, error) {
	for i := range s.docs {
		if s.docs[i].Key == key {
			return &s.docs[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
}

func (s *stubDocs) List(_ context.Context, category string, _ pagination.Params) ([]docstore.Document, string, error) {
	var out []docstore.Document
	for _, doc := range s.docs {
		if category == "" || doc.Category == category {
			out = append(out, doc)
		}
	}
	return out, "", nil
}

func (s *stubDocs) Categories(context.Context) ([]string, error) {
	return []string{"tools"}, nil
}

func (s *stubDocs) UpdateImageURL(_ context.Context, key, imageURL string) error {
	if s.updates == nil {
		s.updates = map[string]string{}
	}
	s.updates[key] = imageURL
	return nil
}

type stubGateway struct {
	embargoed map[string]bool
	uploadErr error
}

func (g *stubGateway) Resolve(_ context.Context, imageRef string) media.Resolution {
	if g.embargoed[imageRef] {
		return media.Resolution{URL: fallbackAddr, Reason: media.FallbackEmbargoed}
	}
	return media.Resolution{URL: imageRef}
}

func (g *stubGateway) Upload(_ context.Context, blobName string, _ []byte) (string, error) {
	if g.uploadErr != nil {
		return "", g.uploadErr
	}
	return "https://store.example/media/" + blobName + "?sig=abc", nil
}

func newTestProductService(t *testing.T, docs *stubDocs, gateway *stubGateway) *Service {
	t.Helper()
	svc, err := NewService(docs, gateway, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), 4)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedDocs() []docstore.Document {
	now := time.Now().UTC()
	return []docstore.Document{
		{Key: "100001", ProductID: 100001, Name: "Hammer", Price: decimal.NewFromInt(12), Category: "tools",
			ImageURL: "https://store.example/media/hammer.png?sig=abc", CreatedAt: now},
		{Key: "100002", ProductID: 100002, Name: "Secret Drill", Price: decimal.NewFromInt(99), Category: "tools",
			ImageURL: "https://store.example/media/drill.png?sig=abc", CreatedAt: now},
	}
}

func TestListResolvesEveryItem(t *testing.T) {
	t.Parallel()

	docs := &stubDocs{docs: seedDocs()}
	gateway := &stubGateway{embargoed: map[string]bool{
		"https://store.example/media/drill.png?sig=abc": true,
	}}
	svc := newTestProductService(t, docs, gateway)

	page, err := svc.List(context.Background(), "tools", pagination.Params{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}

	released := page.Items[0]
	if released.ImageURL != "https://store.example/media/hammer.png?sig=abc" {
		t.Fatalf("released item must keep its candidate address, got %q", released.ImageURL)
	}
	if want := "https://store.example/media/hammer_thumb.png?sig=abc"; released.ThumbnailURL != want {
		t.Fatalf("expected thumbnail %q, got %q", want, released.ThumbnailURL)
	}

	embargoed := page.Items[1]
	if embargoed.ImageURL != fallbackAddr {
		t.Fatalf("embargoed item must fall back, got %q", embargoed.ImageURL)
	}
	if embargoed.ThumbnailURL != "" {
		t.Fatalf("embargoed item must not expose a thumbnail, got %q", embargoed.ThumbnailURL)
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	svc := newTestProductService(t, &stubDocs{}, &stubGateway{})
	_, err := svc.Get(context.Background(), "p-404")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttachImagesRelinksByStem(t *testing.T) {
	t.Parallel()

	docs := &stubDocs{docs: seedDocs()}
	svc := newTestProductService(t, docs, &stubGateway{})

	updated, err := svc.AttachImages(context.Background(), map[string][]byte{
		"hammer.png":  []byte("new-bytes"),
		"unknown.png": []byte("orphan"),
	})
	if err != nil {
		t.Fatalf("AttachImages: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 document updated, got %d", updated)
	}
	if got := docs.updates["100001"]; got != "https://store.example/media/hammer.png?sig=abc" {
		t.Fatalf("unexpected rewritten address %q", got)
	}
}

func TestAttachImagesSkipsFailedUploads(t *testing.T) {
	t.Parallel()

	docs := &stubDocs{docs: seedDocs()}
	svc := newTestProductService(t, docs, &stubGateway{uploadErr: errors.New("backend down")})

	updated, err := svc.AttachImages(context.Background(), map[string][]byte{
		"hammer.png": []byte("new-bytes"),
	})
	if err != nil {
		t.Fatalf("AttachImages: %v", err)
	}
	if updated != 0 || len(docs.updates) != 0 {
		t.Fatalf("failed upload must not rewrite documents, got %d / %v", updated, docs.updates)
	}
}
