// Package api hosts the read-only operations server used in schedule mode.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs/latest for the most recent ingestion run.
//
// The server never triggers ingestion.
package api
