package worker

import (
	"time"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

// State is the terminal state of one category drain.
type State string

// Terminal drain states.
const (
	// StateExhausted means pagination stopped and the batch was persisted.
	StateExhausted State = "exhausted"
	// StateFailed means the batch could not be persisted.
	StateFailed State = "failed"
	// StateNotStarted marks categories still queued when a run was canceled.
	StateNotStarted State = "not_started"
)

// StopReason records why pagination ended for a category.
type StopReason string

// Stop reasons.
const (
	StopExhausted   StopReason = "exhausted"
	StopEmptyPage   StopReason = "empty_page"
	StopDecodeError StopReason = "decode_error"
	StopPageLimit   StopReason = "page_limit"
	StopCanceled    StopReason = "canceled"
	StopNotStarted  StopReason = "not_started"
)

// CategoryResult is the outcome of draining one category.
type CategoryResult struct {
	Category catalog.Category `json:"category"`
	State    State            `json:"state"`
	Stop     StopReason       `json:"stop"`
	// StopCause is the page error that ended pagination, if any. It is not a
	// failure.
	StopCause error `json:"-"`
	// Err is set only when State is StateFailed.
	Err error `json:"-"`
	// Pages counts successfully decoded pages.
	Pages     int           `json:"pages"`
	Fetched   int           `json:"fetched"`
	Skipped   int           `json:"skipped"`
	Persisted int           `json:"persisted"`
	Duration  time.Duration `json:"duration_ns"`
}

// Failed reports whether the category ended in StateFailed.
func (r CategoryResult) Failed() bool {
	return r.State == StateFailed
}
