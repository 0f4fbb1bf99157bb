package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the ingestion error taxonomy. Typed errors below match
// them through errors.Is.
var (
	// ErrMalformedCategoryData marks a category tree that cannot be parsed.
	ErrMalformedCategoryData = errors.New("malformed category data")
	// ErrCategorySource marks a category endpoint that could not be fetched.
	ErrCategorySource = errors.New("category source unavailable")
	// ErrPageFetch marks a listing page that returned non-200 or failed in transport.
	ErrPageFetch = errors.New("page fetch failed")
	// ErrProductDecode marks a listing page whose body lacks the product list.
	ErrProductDecode = errors.New("product decode failed")
	// ErrPersistence marks a write rejected by the store.
	ErrPersistence = errors.New("persistence failed")
	// ErrRunNotFound signals that no run has been recorded yet.
	ErrRunNotFound = errors.New("run not found")
)

// MalformedCategoryError describes one invalid node of the category tree.
type MalformedCategoryError struct {
	Path   string
	Reason string
}

func (e *MalformedCategoryError) Error() string {
	return fmt.Sprintf("malformed category data at %s: %s", e.Path, e.Reason)
}

// Is matches ErrMalformedCategoryData.
func (e *MalformedCategoryError) Is(target error) bool {
	return target == ErrMalformedCategoryData
}

// PageFetchError carries the HTTP status of a failed listing request.
// StatusCode is zero when the request failed before a response arrived.
type PageFetchError struct {
	CategoryID ID
	Page       int
	StatusCode int
	Err        error
}

func (e *PageFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("page fetch failed: category %s page %d: status %d", e.CategoryID, e.Page, e.StatusCode)
	}
	return fmt.Sprintf("page fetch failed: category %s page %d: %v", e.CategoryID, e.Page, e.Err)
}

// Unwrap exposes the transport error, if any.
func (e *PageFetchError) Unwrap() error {
	return e.Err
}

// Is matches ErrPageFetch.
func (e *PageFetchError) Is(target error) bool {
	return target == ErrPageFetch
}

// Retryable reports whether the failure looks transient: a transport error,
// 429, or a 5xx.
func (e *PageFetchError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= http.StatusInternalServerError
	}
}

// ProductDecodeError reports a 200 listing page that could not be decoded.
type ProductDecodeError struct {
	CategoryID ID
	Page       int
	Err        error
}

func (e *ProductDecodeError) Error() string {
	return fmt.Sprintf("product decode failed: category %s page %d: %v", e.CategoryID, e.Page, e.Err)
}

// Unwrap exposes the decode failure.
func (e *ProductDecodeError) Unwrap() error {
	return e.Err
}

// Is matches ErrProductDecode.
func (e *ProductDecodeError) Is(target error) bool {
	return target == ErrProductDecode
}

// PersistenceError reports a store write that failed.
type PersistenceError struct {
	Op         string
	CategoryID ID
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.CategoryID != "" {
		return fmt.Sprintf("persistence failed: %s for category %s: %v", e.Op, e.CategoryID, e.Err)
	}
	return fmt.Sprintf("persistence failed: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
