package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emberline/storefront-backend/internal/catalog"
	"github.com/emberline/storefront-backend/internal/docstore"
	"github.com/emberline/storefront-backend/internal/media"
	"github.com/emberline/storefront-backend/internal/products"
	"github.com/emberline/storefront-backend/pkg/config"
	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/pagination"
	"github.com/shopspring/decimal"
)

type routerDocs struct{}

func (routerDocs) Get(_ context.Context, key string) (*docstore.Document, error) {
	if key != "100001" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	return &docstore.Document{
		Key: "100001", ProductID: 100001, Name: "Hammer",
		Price: decimal.NewFromInt(12), Category: "tools",
		ImageURL:  "https://store.example/media/hammer.png?sig=abc",
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (d routerDocs) List(ctx context.Context, _ string, _ pagination.Params) ([]docstore.Document, string, error) {
	doc, _ := d.Get(ctx, "100001")
	return []docstore.Document{*doc}, "", nil
}

func (routerDocs) Categories(context.Context) ([]string, error) {
	return []string{"tools"}, nil
}

func (routerDocs) UpdateImageURL(context.Context, string, string) error { return nil }

type routerGateway struct{}

func (routerGateway) Resolve(_ context.Context, imageRef string) media.Resolution {
	return media.Resolution{URL: imageRef}
}

func (routerGateway) Upload(_ context.Context, blobName string, _ []byte) (string, error) {
	return "https://store.example/media/" + blobName + "?sig=abc", nil
}

type routerPipeline struct{}

func (routerPipeline) Ingest(context.Context, string) (*catalog.BatchReport, error) {
	return &catalog.BatchReport{BatchID: "test-batch"}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := products.NewService(routerDocs{}, routerGateway{}, logg, 2)
	if err != nil {
		t.Fatalf("products.NewService: %v", err)
	}

	cfg := &config.Config{}
	cfg.App.Env = "test"
	return NewRouter(cfg, logg, Deps{
		Products: svc,
		Pipeline: routerPipeline{},
		Attacher: svc,
	})
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Storefront-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestProductsListRoute(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data products.Page `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].Name != "Hammer" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestProductDetailNotFound(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/999", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAdminIngestValidatesBody(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/ingest", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing dir, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/admin/v1/ingest", bytes.NewBufferString(`{"dir":"/tmp/batch"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}
