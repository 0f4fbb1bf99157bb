package collyfetcher

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/catalog-ingestor/internal/metrics"
)

// instrumentedTransport records upstream request metrics around a base
// RoundTripper.
type instrumentedTransport struct {
	base http.RoundTripper
	now  func() time.Time
}

func newInstrumentedTransport(base http.RoundTripper) *instrumentedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &instrumentedTransport{base: base, now: time.Now}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("instrumented transport received nil request")
	}
	host := metrics.SanitizeHost(req.URL.String())
	start := t.now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		metrics.ObserveUpstream(host, 0, 0, t.now().Sub(start))
		return nil, fmt.Errorf("upstream roundtrip: %w", err)
	}
	size := 0
	if resp.ContentLength > 0 {
		size = int(resp.ContentLength)
	}
	metrics.ObserveUpstream(host, resp.StatusCode, size, t.now().Sub(start))
	return resp, nil
}
