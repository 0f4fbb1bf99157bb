package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
	StageCategoryStart Stage = "CATEGORY_START"
	StagePageDone      Stage = "PAGE_DONE"
	StageCategoryDone  Stage = "CATEGORY_DONE"
	StageCategoryError Stage = "CATEGORY_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for page completions. StatusTransport
// marks requests that never produced a response.
const (
	Status2xx       StatusClass = "2xx"
	Status3xx       StatusClass = "3xx"
	Status4xx       StatusClass = "4xx"
	Status5xx       StatusClass = "5xx"
	StatusTransport StatusClass = "transport"
	StatusOther     StatusClass = "other"
)

// Event captures a single step of an ingestion run.
type Event struct {
	// RunID identifies the ingestion run.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// CategoryID scopes category and page events.
	CategoryID string
	// Page is the 1-based page number for PAGE_DONE.
	Page int
	// Products counts decoded products (PAGE_DONE) or persisted products
	// (CATEGORY_DONE, RUN_DONE).
	Products int64
	// StatusClass groups the listing response code for PAGE_DONE.
	StatusClass StatusClass
	// Dur captures page latency or category/run wall time.
	Dur time.Duration
	// Note carries a short detail such as a stop reason or error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageCategoryStart, StageCategoryDone, StageCategoryError:
		if e.CategoryID == "" {
			return fmt.Errorf("%s requires category id", e.Stage)
		}
	case StagePageDone:
		if e.CategoryID == "" {
			return errors.New("page done requires category id")
		}
		if e.Page < 1 {
			return errors.New("page done requires page >= 1")
		}
		if e.StatusClass == "" {
			return errors.New("page done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Products < 0 {
		return errors.New("products must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for page events. Zero means the
// request failed before a response arrived.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code == 0:
		return StatusTransport
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
