package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/emberline/storefront-backend/internal/docstore"
	"github.com/emberline/storefront-backend/internal/media"
	"github.com/emberline/storefront-backend/pkg/config"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type uploader interface {
	Upload(ctx context.Context, blobName string, image []byte) (string, error)
}

type documentWriter interface {
	Create(ctx context.Context, doc *docstore.Document) error
}

// Pipeline ingests a catalog batch: uploads each entry's image, assigns
// identifiers, then fans the document writes out concurrently and reports
// every entry's outcome. Only a failure before the writes begin, such as an
// unreadable batch file, is an error of the run itself.
type Pipeline struct {
	media uploader
	docs  documentWriter
	seq   Sequence
	cfg   config.IngestConfig
	logg  *logger.Logger
	mets  *metrics.IngestMetrics
}

// NewPipeline wires the ingestion pipeline. mets may be nil.
func NewPipeline(mediaSvc uploader, docs documentWriter, seq Sequence, cfg config.IngestConfig, logg *logger.Logger, mets *metrics.IngestMetrics) (*Pipeline, error) {
	if mediaSvc == nil || docs == nil || seq == nil {
		return nil, fmt.Errorf("media service, document writer and sequence are required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	return &Pipeline{media: mediaSvc, docs: docs, seq: seq, cfg: cfg, logg: logg, mets: mets}, nil
}

// Ingest runs one batch from dir and blocks until every write has settled.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (*BatchReport, error) {
	start := time.Now()
	report := &BatchReport{BatchID: uuid.NewString()}
	ctx = p.logg.WithBatchID(ctx, report.BatchID)

	batch, err := ReadBatch(dir, p.cfg)
	if err != nil {
		p.logg.Error(ctx, "batch source unreadable", err)
		return nil, err
	}
	if len(batch.Entries) == 0 {
		p.logg.Info(ctx, "batch is empty, nothing to ingest")
		report.Duration = time.Since(start)
		return report, nil
	}

	report.Outcomes = make([]Outcome, len(batch.Entries))
	docs := p.prepare(ctx, batch, report)
	p.fanOut(ctx, docs, report)

	report.Duration = time.Since(start)
	p.mets.ObserveBatch(report.Duration)
	p.logg.Info(ctx, fmt.Sprintf(
		"batch ingested: %d entries, %d succeeded, %d failed in %s",
		len(report.Outcomes), report.Succeeded(), report.Failed(), report.Duration.Round(time.Millisecond),
	))
	return report, nil
}

// prepare validates each entry, uploads its image when the batch carries one,
// assigns missing identifiers and maps survivors into documents. The returned
// slice is index-aligned with the outcomes; a nil slot means the entry
// already failed and gets no write.
func (p *Pipeline) prepare(ctx context.Context, batch *Batch, report *BatchReport) []*docstore.Document {
	docs := make([]*docstore.Document, len(batch.Entries))

	for i, entry := range batch.Entries {
		out := &report.Outcomes[i]
		out.Index = i
		out.State = StateLoaded
		if entry != nil {
			out.Name = entry.Name
		}

		if err := ValidateEntry(entry); err != nil {
			p.failEntry(ctx, out, ReasonInvalidDescriptor, err)
			continue
		}

		blobName := media.BlobNameFromRef(entry.ImageRef)
		if payload, ok := batch.Images[blobName]; ok {
			address, err := p.media.Upload(ctx, blobName, payload)
			if err != nil {
				p.failEntry(ctx, out, ReasonUploadFailed, err)
				continue
			}
			entry.ImageRef = address
			out.State = StateImageUploaded
		} else {
			out.State = StateImageSkipped
		}

		if entry.ID == 0 {
			id, err := p.seq.Next(ctx)
			if err != nil {
				p.failEntry(ctx, out, ReasonNoIdentifier, err)
				continue
			}
			entry.ID = id
		}

		docs[i] = mapDocument(entry)
		out.State = StateMapped
		out.Key = docs[i].Key
		out.ProductID = entry.ID
	}
	return docs
}

// fanOut writes the prepared documents with bounded parallelism. Workers
// record their outcome by index and always return nil so one rejection never
// cancels a sibling; Wait only returns once every write has settled.
func (p *Pipeline) fanOut(ctx context.Context, docs []*docstore.Document, report *BatchReport) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Parallelism)

	for i := range docs {
		if docs[i] == nil {
			continue
		}
		report.Outcomes[i].State = StateWritePending

		group.Go(func() error {
			writeCtx, cancel := context.WithTimeout(groupCtx, p.cfg.WriteTimeout)
			defer cancel()

			out := &report.Outcomes[i]
			if err := p.docs.Create(writeCtx, docs[i]); err != nil {
				out.State = StateWriteFailed
				out.Reason = ReasonWriteFailed
				out.Err = err
				p.logg.Error(ctx, fmt.Sprintf("document write failed for entry %d (key %s)", i, out.Key), err)
				p.mets.IncItem("failed", ReasonWriteFailed)
				return nil
			}
			out.State = StateWriteSucceeded
			p.mets.IncItem("succeeded", "")
			return nil
		})
	}
	_ = group.Wait()
}

func (p *Pipeline) failEntry(ctx context.Context, out *Outcome, reason string, err error) {
	out.Reason = reason
	out.Err = err
	p.logg.Error(ctx, fmt.Sprintf("entry %d rejected: %s", out.Index, reason), err)
	p.mets.IncItem("failed", reason)
}

func mapDocument(entry *Entry) *docstore.Document {
	return &docstore.Document{
		Key:         strconv.FormatInt(entry.ID, 10),
		ProductID:   entry.ID,
		Name:        entry.Name,
		Description: entry.Description,
		Price:       entry.Price,
		Category:    entry.Category,
		ImageURL:    entry.ImageRef,
		CreatedAt:   time.Now().UTC(),
	}
}
