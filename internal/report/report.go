// Package report archives finished run reports and announces them.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
	"github.com/JakeFAU/catalog-ingestor/internal/dispatcher"
)

// Config controls where reports land and where notifications go.
type Config struct {
	// Prefix is prepended to runs/{run_id}.json.
	Prefix string
	// Topic overrides the publisher's default topic.
	Topic string
}

// Hasher digests archived report bodies.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Reporter implements dispatcher.Archiver.
type Reporter struct {
	blobs     catalog.BlobStore
	publisher catalog.Publisher
	hasher    Hasher
	cfg       Config
	logger    *zap.Logger
}

// New builds a Reporter. Either collaborator may be nil to skip that step.
func New(blobs catalog.BlobStore, publisher catalog.Publisher, cfg Config, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		blobs:     blobs,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.Named("report"),
	}
}

// WithHasher sets the digest published as Notification.ReportSHA256.
func (r *Reporter) WithHasher(h Hasher) *Reporter {
	r.hasher = h
	return r
}

// Notification is the message published after each run.
type Notification struct {
	RunID      string            `json:"run_id"`
	Status     catalog.RunStatus `json:"status"`
	Categories int               `json:"categories"`
	Products   int               `json:"products"`
	Failures   int               `json:"failures"`
	ReportURI  string            `json:"report_uri,omitempty"`
	// ReportSHA256 is the hex digest of the archived document.
	ReportSHA256 string `json:"report_sha256,omitempty"`
}

// Archive writes the report document and publishes a Notification. A publish
// failure is logged and does not invalidate the returned URI.
func (r *Reporter) Archive(ctx context.Context, rep dispatcher.Report) (string, error) {
	var uri, digest string
	if r.blobs != nil {
		body, err := json.MarshalIndent(newDocument(rep), "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal report: %w", err)
		}
		uri, err = r.blobs.PutObject(ctx, ObjectPath(r.cfg.Prefix, rep.RunID), "application/json", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("write report: %w", err)
		}
		if r.hasher != nil {
			if digest, err = r.hasher.Hash(body); err != nil {
				r.logger.Warn("hash report failed", zap.String("run_id", rep.RunID), zap.Error(err))
			}
		}
	}

	if r.publisher != nil {
		summary := rep.Summary()
		msg := Notification{
			RunID:      summary.RunID,
			Status:     summary.Status,
			Categories: summary.Categories,
			Products:   summary.Products,
			Failures:   summary.Failures,
			ReportURI:  uri,

			ReportSHA256: digest,
		}
		id, err := r.publisher.Publish(ctx, r.cfg.Topic, msg)
		if err != nil {
			r.logger.Warn("publish run notification failed",
				zap.String("run_id", rep.RunID), zap.Error(err))
		} else {
			r.logger.Debug("run notification published",
				zap.String("run_id", rep.RunID), zap.String("message_id", id))
		}
	}
	return uri, nil
}

// ObjectPath returns the blob path for a run's report.
func ObjectPath(prefix, runID string) string {
	return path.Join(prefix, "runs", runID+".json")
}

type document struct {
	RunID             string            `json:"run_id"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	Status            catalog.RunStatus `json:"status"`
	Categories        int               `json:"categories"`
	ProductsPersisted int               `json:"products_persisted"`
	Error             string            `json:"error,omitempty"`
	SkippedCategories []string          `json:"skipped_categories,omitempty"`
	Results           []categoryEntry   `json:"results"`
}

type categoryEntry struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Stop       string `json:"stop"`
	StopCause  string `json:"stop_cause,omitempty"`
	Error      string `json:"error,omitempty"`
	Pages      int    `json:"pages"`
	Fetched    int    `json:"fetched"`
	Skipped    int    `json:"skipped"`
	Persisted  int    `json:"persisted"`
	DurationMS int64  `json:"duration_ms"`
}

func newDocument(rep dispatcher.Report) document {
	doc := document{
		RunID:             rep.RunID,
		StartedAt:         rep.StartedAt,
		FinishedAt:        rep.FinishedAt,
		Status:            rep.Status,
		Categories:        rep.Categories,
		ProductsPersisted: rep.ProductsPersisted,
		Error:             rep.Err,
		SkippedCategories: rep.SkippedCategories,
		Results:           make([]categoryEntry, 0, len(rep.Results)),
	}
	for _, res := range rep.Results {
		entry := categoryEntry{
			CategoryID: res.Category.ID.String(),
			Name:       res.Category.Name,
			State:      string(res.State),
			Stop:       string(res.Stop),
			Pages:      res.Pages,
			Fetched:    res.Fetched,
			Skipped:    res.Skipped,
			Persisted:  res.Persisted,
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.StopCause != nil {
			entry.StopCause = res.StopCause.Error()
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		doc.Results = append(doc.Results, entry)
	}
	return doc
}
