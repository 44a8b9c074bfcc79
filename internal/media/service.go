package media

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/emberline/storefront-backend/pkg/config"
	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/metrics"
	"github.com/gabriel-vasile/mimetype"
)

// ReleaseDateKey is the single metadata field this subsystem writes and reads.
// The value is a calendar date, no time-of-day, formatted as time.DateOnly.
const ReleaseDateKey = "ReleaseDate"

// releaseDateLookupKey matches the lowercased key form returned by the blob
// client's metadata reads.
const releaseDateLookupKey = "releasedate"

const (
	decisionReleased  = "released"
	decisionEmbargoed = "embargoed"

	outcomeReleased = "released"
)

type objectStore interface {
	URL(blobName string) string
	Container() string
	SASToken() string
	Metadata(ctx context.Context, blobName string) (map[string]string, error)
	Upload(ctx context.Context, blobName string, data []byte, metadata map[string]string, contentType string) (string, error)
}

// releaseCache is a day-scoped cache for decisive gate outcomes. Satisfied by
// pkg/redis.Client; optional.
type releaseCache interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ReleaseGateKey(blobName, day string) string
}

// Service exposes the release gate resolver and the media upload gateway.
type Service struct {
	store           objectStore
	cache           releaseCache
	defaultImageURL string
	logg            *logger.Logger
	mets            *metrics.ResolverMetrics
	now             func() time.Time
}

// NewService constructs the media service. cache and mets may be nil.
func NewService(store objectStore, cache releaseCache, cfg config.StorageConfig, logg *logger.Logger, mets *metrics.ResolverMetrics) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.DefaultImageURL == "" {
		return nil, fmt.Errorf("default image url is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		store:           store,
		cache:           cache,
		defaultImageURL: cfg.DefaultImageURL,
		logg:            logg,
		mets:            mets,
		now:             time.Now,
	}, nil
}

// DefaultImageURL returns the statically configured fallback address.
func (s *Service) DefaultImageURL() string {
	return s.defaultImageURL
}

// Resolve runs imageRef through the release gate and returns the address safe
// to expose publicly. Every failure class short-circuits to the default
// address; nothing propagates past this boundary.
func (s *Service) Resolve(ctx context.Context, imageRef string) Resolution {
	blobName := BlobNameFromRef(imageRef)
	ctx = s.logg.WithBlob(ctx, blobName)

	if s.store.Container() == "" || s.store.SASToken() == "" {
		return s.fallback(ctx, FallbackMissingConfig, "storage container or credential not configured", nil)
	}

	candidate := s.store.URL(blobName)
	today := s.today()
	day := today.Format(time.DateOnly)

	if decision, ok := s.cachedDecision(ctx, blobName, day); ok {
		if decision == decisionReleased {
			s.mets.IncResolution(outcomeReleased)
			return Resolution{URL: candidate}
		}
		return s.fallback(ctx, FallbackEmbargoed, "image embargoed (cached decision)", nil)
	}

	metadata, err := s.store.Metadata(ctx, blobName)
	if err != nil {
		return s.fallback(ctx, FallbackMetadataUnavailable, "release date metadata unavailable", err)
	}

	raw, ok := metadata[releaseDateLookupKey]
	if !ok {
		return s.fallback(ctx, FallbackMetadataUnavailable, "release date metadata missing", nil)
	}

	releaseDate, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return s.fallback(ctx, FallbackUnparsableDate, fmt.Sprintf("unparsable release date %q", raw), err)
	}

	if releaseDate.After(today) {
		s.cacheDecision(ctx, blobName, day, decisionEmbargoed)
		return s.fallback(ctx, FallbackEmbargoed, "image embargoed until "+releaseDate.Format(time.DateOnly), nil)
	}

	s.cacheDecision(ctx, blobName, day, decisionReleased)
	s.mets.IncResolution(outcomeReleased)
	return Resolution{URL: candidate}
}

// Upload writes image bytes under blobName, stamping today's date as the
// release baseline, and returns the canonical authorized address. The durable
// blob name is the final path segment of the returned address. A backend
// failure is returned as an error for the caller to record; it never panics
// or aborts a batch.
func (s *Service) Upload(ctx context.Context, blobName string, image []byte) (string, error) {
	ctx = s.logg.WithBlob(ctx, blobName)

	metadata := map[string]string{
		ReleaseDateKey: s.today().Format(time.DateOnly),
	}
	contentType := ""
	if len(image) > 0 {
		contentType = mimetype.Detect(image).String()
	}

	address, err := s.store.Upload(ctx, blobName, image, metadata, contentType)
	if err != nil {
		s.logg.Error(ctx, "image upload failed", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image")
	}

	s.logg.Info(ctx, "image uploaded")
	return address, nil
}

// BlobNameFromRef reduces an image reference to a bare blob name. A
// fully-qualified URL keeps only its final path segment; anything else is
// already a bare name.
func BlobNameFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	segment := path.Base(parsed.Path)
	if segment == "." || segment == "/" {
		return ""
	}
	return segment
}

func (s *Service) fallback(ctx context.Context, reason FallbackReason, msg string, err error) Resolution {
	if err != nil {
		s.logg.Error(ctx, msg, err)
	} else {
		s.logg.Warn(ctx, msg)
	}
	s.mets.IncResolution(string(reason))
	return Resolution{URL: s.defaultImageURL, Reason: reason}
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) cachedDecision(ctx context.Context, blobName, day string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, found, err := s.cache.Lookup(ctx, s.cache.ReleaseGateKey(blobName, day))
	if err != nil {
		s.logg.Warn(ctx, "release gate cache lookup failed")
		return "", false
	}
	return value, found
}

// cacheDecision stores decisive outcomes only; transient failures are never
// cached so a recovered backend is retried on the next request.
func (s *Service) cacheDecision(ctx context.Context, blobName, day string, decision string) {
	if s.cache == nil {
		return
	}
	ttl := s.today().AddDate(0, 0, 1).Sub(s.now().UTC())
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, s.cache.ReleaseGateKey(blobName, day), decision, ttl); err != nil {
		s.logg.Warn(ctx, "release gate cache write failed")
	}
}
