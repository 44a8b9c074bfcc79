package thumbnails

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/storage/blob"
)

func encodeTestImage(t *testing.T, width, height int, format imaging.Format) []byte {
	t.Helper()

	img := imaging.New(width, height, color.NRGBA{R: 10, G: 120, B: 240, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestThumbnailPadsToExactSize(t *testing.T) {
	t.Parallel()

	resizer := NewResizer(100, 100)
	source := encodeTestImage(t, 400, 200, imaging.PNG)

	thumb, contentType, err := resizer.Thumbnail(source)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("expected image/png, got %q", contentType)
	}

	decoded, err := imaging.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Fatalf("expected 100x100 padded output, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestThumbnailDetectsFormatFromContent(t *testing.T) {
	t.Parallel()

	resizer := NewResizer(100, 100)

	// JPEG bytes, regardless of what any file name claimed.
	source := encodeTestImage(t, 50, 80, imaging.JPEG)
	_, contentType, err := resizer.Thumbnail(source)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", contentType)
	}
}

func TestThumbnailRejectsNonImagePayload(t *testing.T) {
	t.Parallel()

	resizer := NewResizer(100, 100)
	if _, _, err := resizer.Thumbnail([]byte("just text, not pixels")); err == nil {
		t.Fatal("expected unsupported format error")
	}
	if _, _, err := resizer.Thumbnail(nil); err == nil {
		t.Fatal("expected empty payload error")
	}
}

type stubObjectStore struct {
	objects map[string][]byte
	getErr  error
	putErr  error

	putName        string
	putData        []byte
	putContentType string
}

func (s *stubObjectStore) Download(_ context.Context, blobName string) ([]byte, string, error) {
	if s.getErr != nil {
		return nil, "", s.getErr
	}
	data, ok := s.objects[blobName]
	if !ok {
		return nil, "", blob.ErrNotFound
	}
	return data, "application/octet-stream", nil
}

func (s *stubObjectStore) Upload(_ context.Context, blobName string, data []byte, _ map[string]string, contentType string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	s.putName = blobName
	s.putData = data
	s.putContentType = contentType
	return "https://store.example/media/" + blobName + "?sig=abc", nil
}

func newTestConsumer(store *stubObjectStore) *Consumer {
	return &Consumer{
		store:   store,
		resizer: NewResizer(100, 100),
		logg:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func TestDeriveWritesThumbnail(t *testing.T) {
	t.Parallel()

	store := &stubObjectStore{objects: map[string][]byte{
		"widget.png": encodeTestImage(t, 300, 300, imaging.PNG),
	}}
	consumer := newTestConsumer(store)

	if err := consumer.Derive(context.Background(), "widget.png"); err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if store.putName != "widget_thumb.png" {
		t.Fatalf("expected widget_thumb.png, got %q", store.putName)
	}
	if store.putContentType != "image/png" {
		t.Fatalf("expected source content type preserved, got %q", store.putContentType)
	}
	if len(store.putData) == 0 {
		t.Fatal("expected encoded thumbnail bytes")
	}
}

func TestDeriveSkipsThumbnails(t *testing.T) {
	t.Parallel()

	store := &stubObjectStore{}
	consumer := newTestConsumer(store)

	if err := consumer.Derive(context.Background(), "widget_thumb.png"); err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if store.putName != "" {
		t.Fatalf("thumbnail objects must not be re-derived, wrote %q", store.putName)
	}
}

func TestDeriveErrorClassification(t *testing.T) {
	t.Parallel()

	missing := &stubObjectStore{objects: map[string][]byte{}}
	err := newTestConsumer(missing).Derive(context.Background(), "gone.png")
	if err == nil || isTransient(err) {
		t.Fatalf("missing object must be permanent, got %v", err)
	}

	flaky := &stubObjectStore{getErr: errors.New("connection reset")}
	err = newTestConsumer(flaky).Derive(context.Background(), "widget.png")
	if err == nil || !isTransient(err) {
		t.Fatalf("backend failure must be retryable, got %v", err)
	}

	garbage := &stubObjectStore{objects: map[string][]byte{"widget.png": []byte("not pixels")}}
	err = newTestConsumer(garbage).Derive(context.Background(), "widget.png")
	if err == nil || isTransient(err) {
		t.Fatalf("undecodable payload must be permanent, got %v", err)
	}
}
