package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorySourceLoad(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{responses: []scriptedResponse{{
		status: http.StatusOK,
		body:   `{"data":[{"id":1,"name":"A","shardKey":"a"},{"id":2,"childrenOnly":true,"nodes":[{"id":3,"name":"B","shardKey":"b"}]}]}`,
	}}}
	src := NewCategorySource(fetcher, "http://menu.test/api", true, 0, nil)

	result, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Categories, 2)
	assert.Equal(t, []string{"http://menu.test/api"}, fetcher.urls())
}

func TestCategorySourceDefaultsURL(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{responses: []scriptedResponse{{status: http.StatusOK, body: `{"data":[]}`}}}
	src := NewCategorySource(fetcher, "", true, 0, nil)

	result, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Categories)
	assert.Equal(t, []string{DefaultCategoriesURL}, fetcher.urls())
}

func TestCategorySourceErrors(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		fetcher := &scriptedFetcher{responses: []scriptedResponse{{status: http.StatusBadGateway}}}
		_, err := NewCategorySource(fetcher, "http://menu.test", true, 0, nil).Load(context.Background())
		assert.ErrorIs(t, err, ErrCategorySource)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("transport", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("dial failed")
		fetcher := &scriptedFetcher{responses: []scriptedResponse{{err: boom}}}
		_, err := NewCategorySource(fetcher, "http://menu.test", true, 0, nil).Load(context.Background())
		assert.ErrorIs(t, err, ErrCategorySource)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		fetcher := &scriptedFetcher{responses: []scriptedResponse{{status: http.StatusOK, body: `{"data":[{"name":"x"}]}`}}}
		_, err := NewCategorySource(fetcher, "http://menu.test", true, 0, nil).Load(context.Background())
		assert.ErrorIs(t, err, ErrMalformedCategoryData)
		assert.NotErrorIs(t, err, ErrCategorySource)
	})
}
