package media

// FallbackReason explains why a resolution degraded to the default image.
// The zero value means the candidate address was released.
type FallbackReason string

const (
	FallbackNone                FallbackReason = ""
	FallbackMissingConfig       FallbackReason = "missing_config"
	FallbackMetadataUnavailable FallbackReason = "metadata_unavailable"
	FallbackUnparsableDate      FallbackReason = "unparsable_date"
	FallbackEmbargoed           FallbackReason = "embargoed"
)

// Resolution is the outcome of running an image reference through the release
// gate. URL is always safe to expose: either the authorized candidate address
// of a released image or the configured default. The fallback decision is an
// explicit result, never an escaped error.
type Resolution struct {
	URL    string
	Reason FallbackReason
}

// Released reports whether the candidate address survived the gate.
func (r Resolution) Released() bool {
	return r.Reason == FallbackNone
}
