package catalog

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/emberline/storefront-backend/pkg/config"
	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
)

// Batch is one descriptor file plus the raw image payloads found next to it,
// keyed by file name.
type Batch struct {
	Entries []*Entry
	Images  map[string][]byte
}

// ReadBatch loads the descriptor batch and sibling image directory from dir.
// An unreadable or malformed descriptor file is a hard error; a missing image
// directory just means no entry gets image bytes.
func ReadBatch(dir string, cfg config.IngestConfig) (*Batch, error) {
	batchPath := filepath.Join(dir, cfg.BatchFileName)
	raw, err := os.ReadFile(batchPath)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read batch file")
	}

	var entries []*Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse batch file")
	}

	images, err := ReadImageDir(filepath.Join(dir, cfg.ImageDirName))
	if err != nil {
		return nil, err
	}

	return &Batch{Entries: entries, Images: images}, nil
}

// ReadImageDir loads every regular file in dir keyed by file name. A missing
// directory yields an empty map.
func ReadImageDir(dir string) (map[string][]byte, error) {
	listing, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string][]byte{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read image directory")
	}

	images := make(map[string][]byte, len(listing))
	for _, item := range listing {
		if item.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, item.Name()))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read image file")
		}
		images[item.Name()] = data
	}
	return images, nil
}
