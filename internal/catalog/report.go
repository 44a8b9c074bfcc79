package catalog

import (
	"time"

	"go.uber.org/multierr"
)

// EntryState tracks an entry through its ingestion lifecycle.
type EntryState string

const (
	StateLoaded         EntryState = "loaded"
	StateImageUploaded  EntryState = "image_uploaded"
	StateImageSkipped   EntryState = "image_skipped"
	StateMapped         EntryState = "mapped"
	StateWritePending   EntryState = "write_pending"
	StateWriteSucceeded EntryState = "write_succeeded"
	StateWriteFailed    EntryState = "write_failed"
)

// Failure reasons recorded on outcomes.
const (
	ReasonInvalidDescriptor = "invalid_descriptor"
	ReasonUploadFailed      = "upload_failed"
	ReasonNoIdentifier      = "identifier_unavailable"
	ReasonWriteFailed       = "write_failed"
)

// Outcome is the terminal record for one batch entry, correlated back to the
// source by Index regardless of write completion order.
type Outcome struct {
	Index     int        `json:"index"`
	Key       string     `json:"key,omitempty"`
	ProductID int64      `json:"product_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	State     EntryState `json:"state"`
	Reason    string     `json:"reason,omitempty"`
	Err       error      `json:"-"`
}

// Failed reports whether the entry ended in a terminal failure.
func (o Outcome) Failed() bool {
	return o.Reason != ""
}

// BatchReport summarizes one ingestion run. Partial item failures live in
// Outcomes; they are never surfaced as a run-level error.
type BatchReport struct {
	BatchID  string        `json:"batch_id"`
	Outcomes []Outcome     `json:"outcomes"`
	Duration time.Duration `json:"duration"`
}

// Succeeded counts entries whose document write committed.
func (r *BatchReport) Succeeded() int {
	count := 0
	for _, o := range r.Outcomes {
		if o.State == StateWriteSucceeded {
			count++
		}
	}
	return count
}

// Failed counts entries that ended in any terminal failure.
func (r *BatchReport) Failed() int {
	count := 0
	for _, o := range r.Outcomes {
		if o.Failed() {
			count++
		}
	}
	return count
}

// Err aggregates the individual item errors for logging. Advisory only; a
// non-nil result does not mean the run failed.
func (r *BatchReport) Err() error {
	var combined error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			combined = multierr.Append(combined, o.Err)
		}
	}
	return combined
}
