package dispatcher

import (
	"time"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
	"github.com/JakeFAU/catalog-ingestor/internal/worker"
)

// CategoryError pairs a failed category with its error text.
type CategoryError struct {
	CategoryID catalog.ID `json:"category_id"`
	Name       string     `json:"name,omitempty"`
	Error      string     `json:"error"`
}

// Report is the aggregate outcome of one ingestion run.
type Report struct {
	RunID             string                  `json:"run_id"`
	StartedAt         time.Time               `json:"started_at"`
	FinishedAt        time.Time               `json:"finished_at"`
	Status            catalog.RunStatus       `json:"status"`
	Categories        int                     `json:"categories"`
	ProductsPersisted int                     `json:"products_persisted"`
	Results           []worker.CategoryResult `json:"results"`
	Errors            []CategoryError         `json:"errors"`
	// SkippedCategories lists malformed tree nodes dropped in lenient mode.
	SkippedCategories []string `json:"skipped_categories,omitempty"`
	// Err is the run-fatal error, if any.
	Err string `json:"error,omitempty"`
	// ReportURI is where the archived report was written, if archived.
	ReportURI string `json:"report_uri,omitempty"`
}

// Summary returns the compact view stored in run records.
func (r Report) Summary() catalog.RunSummary {
	return catalog.RunSummary{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Status:     r.Status,
		Categories: r.Categories,
		Products:   r.ProductsPersisted,
		Failures:   len(r.Errors),
		ErrorText:  r.Err,
		ReportURI:  r.ReportURI,
	}
}

// NotStarted counts categories that were still queued when the run stopped.
func (r Report) NotStarted() int {
	n := 0
	for _, res := range r.Results {
		if res.State == worker.StateNotStarted {
			n++
		}
	}
	return n
}

func (r *Report) aggregate() {
	r.ProductsPersisted = 0
	r.Errors = r.Errors[:0]
	for _, res := range r.Results {
		r.ProductsPersisted += res.Persisted
		if res.Failed() && res.Err != nil {
			r.Errors = append(r.Errors, CategoryError{
				CategoryID: res.Category.ID,
				Name:       res.Category.Name,
				Error:      res.Err.Error(),
			})
		}
	}
}

func deriveStatus(canceled bool, categories, failures int) catalog.RunStatus {
	switch {
	case canceled:
		return catalog.RunCanceled
	case failures == 0:
		return catalog.RunSucceeded
	case failures >= categories:
		return catalog.RunFailed
	default:
		return catalog.RunPartial
	}
}
