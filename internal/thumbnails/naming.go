package thumbnails

import (
	"net/url"
	"path"
	"strings"
)

// Suffix is inserted before the file extension of every derived thumbnail.
// Presentation code reconstructs thumbnail addresses purely from this
// convention, so it must stay exact and deterministic.
const Suffix = "_thumb"

// ThumbName derives the thumbnail object name for blobName.
func ThumbName(blobName string) string {
	ext := path.Ext(blobName)
	return strings.TrimSuffix(blobName, ext) + Suffix + ext
}

// IsThumb reports whether blobName already names a derived thumbnail. Used to
// keep the worker from deriving thumbnails of thumbnails.
func IsThumb(blobName string) bool {
	ext := path.Ext(blobName)
	return strings.HasSuffix(strings.TrimSuffix(blobName, ext), Suffix)
}

// ThumbURL applies the naming convention to the final path segment of a full
// address, leaving the query string untouched. Returns the input unchanged
// when it does not parse as a URL.
func ThumbURL(address string) string {
	parsed, err := url.Parse(address)
	if err != nil || parsed.Path == "" {
		return address
	}
	dir, file := path.Split(parsed.Path)
	parsed.Path = dir + ThumbName(file)
	return parsed.String()
}
