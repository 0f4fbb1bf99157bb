package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ID is an opaque remote identifier. The catalog API has emitted both JSON
// numbers and JSON strings for the same field, so the textual form is kept and
// never interpreted.
type ID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id string: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the raw identifier.
func (id ID) String() string {
	return string(id)
}

// Category is an ingestible leaf of the remote category tree.
type Category struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	ShardKey string `json:"shardKey"`
	Query    string `json:"query"`
	RawQuery string `json:"rawQuery"`
}

// ProductKey is the identity of a Product. The same remote product listed under
// two categories yields two distinct keys.
type ProductKey struct {
	ID         ID
	CategoryID ID
}

// Product is one listing entry decoded from a category page. Only Key()
// participates in identity; the remaining fields are payload.
type Product struct {
	ID             ID              `json:"id"`
	CategoryID     ID              `json:"category_id"`
	Name           string          `json:"name"`
	Rating         float64         `json:"rating"`
	FeedbackCount  int64           `json:"feedback_count"`
	Quantity       int64           `json:"quantity"`
	PriceBasic     decimal.Decimal `json:"price_basic"`
	PriceProduct   decimal.Decimal `json:"price_product"`
	PriceTotal     decimal.Decimal `json:"price_total"`
	PriceLogistics decimal.Decimal `json:"price_logistics"`
}

// Key returns the composite identity used for deduplication and storage.
func (p Product) Key() ProductKey {
	return ProductKey{ID: p.ID, CategoryID: p.CategoryID}
}

// Page is the decoded result of one listing request.
type Page struct {
	Number   int
	Products []Product
	// Skipped counts raw entries dropped because they carried no usable
	// identity or price variant.
	Skipped int
}

// Empty reports whether the remote returned no entries at all.
func (p Page) Empty() bool {
	return len(p.Products) == 0 && p.Skipped == 0
}

// Response is the outcome of a single GET performed by a Fetcher.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// RunStatus is the terminal state of an ingestion run.
type RunStatus string

// Run statuses recorded for each ingestion run.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// RunSummary is the compact, persistable view of a finished run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     RunStatus `json:"status"`
	Categories int       `json:"categories"`
	Products   int       `json:"products"`
	Failures   int       `json:"failures"`
	ErrorText  string    `json:"error_text,omitempty"`
	ReportURI  string    `json:"report_uri,omitempty"`
}
