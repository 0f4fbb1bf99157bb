// Package progress provides the event primitives and non-blocking hub that
// the ingestion workers use to report run progress. Events are batched on a
// background goroutine and fanned out to pluggable sinks such as structured
// logs or Prometheus collectors.
package progress
