package dto

import "github.com/Flexitaim/api-flexitaim/internal/models"

// BatchMode selects all-or-nothing or best-effort batch semantics.
type BatchMode string

const (
	BatchModeStrict  BatchMode = "strict"
	BatchModeLenient BatchMode = "lenient"
)

// ParseBatchMode maps the raw query value, defaulting to strict.
func ParseBatchMode(raw string) (BatchMode, bool) {
	switch BatchMode(raw) {
	case "", BatchModeStrict:
		return BatchModeStrict, true
	case BatchModeLenient:
		return BatchModeLenient, true
	}
	return "", false
}

// BatchOutcome describes what a batch did to storage.
type BatchOutcome string

const (
	BatchOutcomeCommitted  BatchOutcome = "COMMITTED"
	BatchOutcomePartial    BatchOutcome = "PARTIAL"
	BatchOutcomeRolledBack BatchOutcome = "ROLLED_BACK"
)

// BatchConflictRef points at what an item collided with: a stored window (ID)
// or an earlier item of the same batch (Index).
type BatchConflictRef struct {
	ID    string `json:"id,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// BatchItemError reports why one batch item was rejected.
type BatchItemError struct {
	Index        int                        `json:"index"`
	Code         string                     `json:"code"`
	Message      string                     `json:"message"`
	ID           string                     `json:"id,omitempty"`
	Input        *CreateAvailabilityRequest `json:"input,omitempty"`
	ConflictWith *BatchConflictRef          `json:"conflict_with,omitempty"`
}

// WindowBatchResult is the typed outcome of a batch create or update.
type WindowBatchResult struct {
	Mode         BatchMode                   `json:"mode"`
	Outcome      BatchOutcome                `json:"outcome"`
	CreatedCount *int                        `json:"created_count,omitempty"`
	UpdatedCount *int                        `json:"updated_count,omitempty"`
	FailedCount  int                         `json:"failed_count"`
	Items        []models.AvailabilityWindow `json:"items"`
	Errors       []BatchItemError            `json:"errors"`
}

// Written returns the number of windows persisted by the batch.
func (r *WindowBatchResult) Written() int {
	if r == nil {
		return 0
	}
	if r.CreatedCount != nil {
		return *r.CreatedCount
	}
	if r.UpdatedCount != nil {
		return *r.UpdatedCount
	}
	return 0
}

// BatchCreateAvailabilityRequest is the HTTP body of a batch create.
type BatchCreateAvailabilityRequest struct {
	Items []CreateAvailabilityRequest `json:"items"`
}

// BatchUpdateAvailabilityRequest is the HTTP body of a batch update.
type BatchUpdateAvailabilityRequest struct {
	Items []BatchUpdateAvailabilityItem `json:"items"`
}
