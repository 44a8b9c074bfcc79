package thumbnails

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// Resizer derives fixed-size padded thumbnails. The source format is detected
// from the payload bytes, never trusted from the object name.
type Resizer struct {
	width  int
	height int
}

func NewResizer(width, height int) *Resizer {
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 100
	}
	return &Resizer{width: width, height: height}
}

// Thumbnail scales payload to fit the target box, pads it to the exact
// dimensions and re-encodes it in its original format. Returns the encoded
// bytes and the detected content type.
func (r *Resizer) Thumbnail(payload []byte) ([]byte, string, error) {
	if len(payload) == 0 {
		return nil, "", fmt.Errorf("empty image payload")
	}

	contentType := mimetype.Detect(payload).String()
	format, err := formatFor(contentType)
	if err != nil {
		return nil, "", err
	}

	src, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	fitted := imaging.Fit(src, r.width, r.height, imaging.Lanczos)
	canvas := imaging.New(r.width, r.height, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	canvas = imaging.PasteCenter(canvas, fitted)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, format); err != nil {
		return nil, "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), contentType, nil
}

func formatFor(contentType string) (imaging.Format, error) {
	switch contentType {
	case "image/png":
		return imaging.PNG, nil
	case "image/jpeg":
		return imaging.JPEG, nil
	case "image/gif":
		return imaging.GIF, nil
	case "image/bmp", "image/x-ms-bmp":
		return imaging.BMP, nil
	case "image/tiff":
		return imaging.TIFF, nil
	default:
		return imaging.PNG, fmt.Errorf("unsupported image format %q", contentType)
	}
}
