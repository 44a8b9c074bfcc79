package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/emberline/storefront-backend/internal/docstore"
	"github.com/emberline/storefront-backend/pkg/config"
	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

type stubUploader struct {
	mu     sync.Mutex
	failOn map[string]bool
	calls  []string
}

func (u *stubUploader) Upload(_ context.Context, blobName string, _ []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, blobName)
	if u.failOn[blobName] {
		return "", errors.New("backend unavailable")
	}
	return "https://store.example/media/" + blobName + "?sig=abc", nil
}

type stubDocWriter struct {
	mu       sync.Mutex
	rejectOn map[string]bool
	created  map[string]*docstore.Document
}

func (w *stubDocWriter) Create(_ context.Context, doc *docstore.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rejectOn[doc.Key] {
		return pkgerrors.New(pkgerrors.CodeConflict, "document already exists")
	}
	if w.created == nil {
		w.created = map[string]*docstore.Document{}
	}
	w.created[doc.Key] = doc
	return nil
}

func writeBatchDir(t *testing.T, entries []*Entry, images map[string][]byte) string {
	t.Helper()

	dir := t.TempDir()
	raw, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "products.json"), raw, 0o644); err != nil {
		t.Fatalf("write batch file: %v", err)
	}
	if len(images) > 0 {
		imageDir := filepath.Join(dir, "images")
		if err := os.Mkdir(imageDir, 0o755); err != nil {
			t.Fatalf("create image dir: %v", err)
		}
		for name, data := range images {
			if err := os.WriteFile(filepath.Join(imageDir, name), data, 0o644); err != nil {
				t.Fatalf("write image %s: %v", name, err)
			}
		}
	}
	return dir
}

func newTestPipeline(t *testing.T, up *stubUploader, docs *stubDocWriter) *Pipeline {
	t.Helper()

	cfg := config.IngestConfig{
		BatchFileName: "products.json",
		ImageDirName:  "images",
		Parallelism:   4,
	}
	pipe, err := NewPipeline(up, docs, NewLocalSequence(100000), cfg,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return pipe
}

func makeEntry(i int) *Entry {
	return &Entry{
		Name:     fmt.Sprintf("Widget %d", i),
		Price:    decimal.NewFromInt(int64(10 + i)),
		Category: "tools",
		ImageRef: fmt.Sprintf("widget-%d.png", i),
	}
}

func TestIngestIsolatesUploadFailure(t *testing.T) {
	t.Parallel()

	entries := make([]*Entry, 5)
	images := map[string][]byte{}
	for i := range entries {
		entries[i] = makeEntry(i + 1)
		images[fmt.Sprintf("widget-%d.png", i+1)] = []byte("png-bytes")
	}
	dir := writeBatchDir(t, entries, images)

	up := &stubUploader{failOn: map[string]bool{"widget-3.png": true}}
	docs := &stubDocWriter{}
	report, err := newTestPipeline(t, up, docs).Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(report.Outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(report.Outcomes))
	}
	third := report.Outcomes[2]
	if third.State == StateWriteSucceeded || third.Reason != ReasonUploadFailed {
		t.Fatalf("entry 3 must fail with upload_failed, got %+v", third)
	}
	if got := report.Succeeded(); got != 4 {
		t.Fatalf("expected 4 successful writes, got %d", got)
	}
	if len(docs.created) != 4 {
		t.Fatalf("expected 4 stored documents, got %d", len(docs.created))
	}
	for _, doc := range docs.created {
		if doc.ProductID <= 100000 {
			t.Fatalf("expected assigned identifier above origin, got %d", doc.ProductID)
		}
		if doc.Key != fmt.Sprintf("%d", doc.ProductID) {
			t.Fatalf("document key %q must be the string form of %d", doc.Key, doc.ProductID)
		}
		if doc.ImageURL == "" || doc.ImageURL[:8] != "https://" {
			t.Fatalf("expected canonical image address, got %q", doc.ImageURL)
		}
	}
}

func TestIngestEmptyBatch(t *testing.T) {
	t.Parallel()

	dir := writeBatchDir(t, []*Entry{}, nil)
	report, err := newTestPipeline(t, &stubUploader{}, &stubDocWriter{}).Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(report.Outcomes) != 0 {
		t.Fatalf("expected empty report, got %d outcomes", len(report.Outcomes))
	}
}

func TestIngestUnreadableBatchIsFatal(t *testing.T) {
	t.Parallel()

	pipe := newTestPipeline(t, &stubUploader{}, &stubDocWriter{})
	if _, err := pipe.Ingest(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected hard error for missing batch file")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "products.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := pipe.Ingest(context.Background(), dir); err == nil {
		t.Fatal("expected hard error for malformed batch file")
	}
}

func TestIngestSurvivesConcurrentRejections(t *testing.T) {
	t.Parallel()

	entries := make([]*Entry, 100)
	for i := range entries {
		entries[i] = makeEntry(i + 1)
	}
	dir := writeBatchDir(t, entries, nil)

	// Local sequence assigns 100001..100100 in prepare order, so every tenth
	// key is known ahead of time.
	docs := &stubDocWriter{rejectOn: map[string]bool{}}
	for id := int64(100010); id <= 100100; id += 10 {
		docs.rejectOn[fmt.Sprintf("%d", id)] = true
	}

	report, err := newTestPipeline(t, &stubUploader{}, docs).Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(report.Outcomes) != 100 {
		t.Fatalf("expected 100 outcomes, got %d", len(report.Outcomes))
	}
	if got := report.Failed(); got != 10 {
		t.Fatalf("expected 10 rejected writes, got %d", got)
	}
	if got := report.Succeeded(); got != 90 {
		t.Fatalf("expected 90 successful writes, got %d", got)
	}
	for _, o := range report.Outcomes {
		if o.Failed() && o.Reason != ReasonWriteFailed {
			t.Fatalf("unexpected failure reason %q at index %d", o.Reason, o.Index)
		}
	}
	if report.Err() == nil {
		t.Fatal("expected aggregated item errors for logging")
	}
}

func TestIngestSkipsUploadWithoutImage(t *testing.T) {
	t.Parallel()

	entry := makeEntry(1)
	dir := writeBatchDir(t, []*Entry{entry}, nil)

	up := &stubUploader{}
	docs := &stubDocWriter{}
	report, err := newTestPipeline(t, up, docs).Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(up.calls) != 0 {
		t.Fatalf("no upload expected without image bytes, got %v", up.calls)
	}
	if report.Outcomes[0].State != StateWriteSucceeded {
		t.Fatalf("entry without image must still be written, got %+v", report.Outcomes[0])
	}
	for _, doc := range docs.created {
		if doc.ImageURL != "widget-1.png" {
			t.Fatalf("declared reference must be preserved, got %q", doc.ImageURL)
		}
	}
}

func TestIngestRejectsInvalidDescriptor(t *testing.T) {
	t.Parallel()

	entries := []*Entry{
		makeEntry(1),
		{Name: "", Category: "tools"},
	}
	dir := writeBatchDir(t, entries, nil)

	docs := &stubDocWriter{}
	report, err := newTestPipeline(t, &stubUploader{}, docs).Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Outcomes[1].Reason != ReasonInvalidDescriptor {
		t.Fatalf("expected invalid_descriptor, got %+v", report.Outcomes[1])
	}
	if len(docs.created) != 1 {
		t.Fatalf("expected 1 stored document, got %d", len(docs.created))
	}
}
