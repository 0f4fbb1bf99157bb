// Package catalog holds the domain model of the catalog ingestor together with
// the pure pieces of the pipeline: category tree flattening, product page
// decoding, deduplication, and the single-page fetcher built on top of an
// injected HTTP capability.
package catalog
