package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/catalog-ingestor/internal/storage/gcs"
)

func newTestStore(t *testing.T, handler http.Handler) *gcs.BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := gcs.New(context.Background(), gcs.Config{Bucket: "test-bucket"},
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutObjectUploads(t *testing.T) {
	payload := []byte(`{"run_id":"r1","status":"succeeded"}`)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/b/test-bucket/o")

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(payload))
		assert.Contains(t, string(body), "runs/r1.json")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"name":"runs/r1.json","bucket":"test-bucket"}`)
	})

	store := newTestStore(t, handler)
	uri, err := store.PutObject(context.Background(), "/runs/r1.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/runs/r1.json", uri)
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestStore(t, handler)
	_, err := store.PutObject(context.Background(), "runs/r1.json", "application/json", bytes.NewReader([]byte("{}")))
	require.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	_, err := gcs.New(context.Background(), gcs.Config{})
	require.Error(t, err)

	_, err = gcs.NewWithClient(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)
}
