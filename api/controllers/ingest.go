package controllers

import (
	"context"
	"net/http"

	"github.com/emberline/storefront-backend/api/responses"
	"github.com/emberline/storefront-backend/api/validators"
	"github.com/emberline/storefront-backend/internal/catalog"
	"github.com/emberline/storefront-backend/pkg/logger"
)

type ingestRunner interface {
	Ingest(ctx context.Context, dir string) (*catalog.BatchReport, error)
}

type imageAttacher interface {
	AttachImages(ctx context.Context, images map[string][]byte) (int, error)
}

type ingestRequest struct {
	Dir string `json:"dir" validate:"required"`
}

type ingestResponse struct {
	BatchID   string            `json:"batch_id"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Outcomes  []catalog.Outcome `json:"outcomes"`
}

// AdminIngest runs one catalog batch from a server-local directory. Partial
// item failures come back in the report body; the request only fails when the
// batch source itself is unreadable.
func AdminIngest(pipeline ingestRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := pipeline.Ingest(r.Context(), req.Dir)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, ingestResponse{
			BatchID:   report.BatchID,
			Total:     len(report.Outcomes),
			Succeeded: report.Succeeded(),
			Failed:    report.Failed(),
			Outcomes:  report.Outcomes,
		})
	}
}

// AdminAttachImages re-links the image files in a server-local directory to
// the catalog documents sharing their name stems.
func AdminAttachImages(svc imageAttacher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		images, err := catalog.ReadImageDir(req.Dir)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.AttachImages(r.Context(), images)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"images":  len(images),
			"updated": updated,
		})
	}
}
