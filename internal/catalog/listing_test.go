package catalog

import (
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingURLBuild(t *testing.T) {
	t.Parallel()

	l := ListingURL{
		BaseURL: "https://catalog.example.com/catalog/",
		Params:  map[string]string{"dest": "-1", "sort": "popular"},
	}

	got, err := l.Build("bl_shirts", "8126", 3)
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "catalog.example.com", u.Host)
	assert.Equal(t, "/catalog/bl_shirts/v2/catalog", u.Path)
	q := u.Query()
	assert.Equal(t, "8126", q.Get("cat"))
	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "-1", q.Get("dest"))
	assert.Equal(t, "popular", q.Get("sort"))
}

func TestListingURLBuildDefaultsBase(t *testing.T) {
	t.Parallel()

	got, err := ListingURL{}.Build("s", "1", 1)
	require.NoError(t, err)
	assert.Equal(t, DefaultListingBaseURL+"/s/v2/catalog?cat=1&page=1", got)
}

func TestListingURLBuildValidates(t *testing.T) {
	t.Parallel()

	l := ListingURL{}
	_, err := l.Build("", "1", 1)
	assert.Error(t, err)
	_, err = l.Build("s", "", 1)
	assert.Error(t, err)
	_, err = l.Build("s", "1", 0)
	assert.Error(t, err)
}

func TestDecodeProductPage(t *testing.T) {
	t.Parallel()

	body := []byte(`{"data":{"products":[
		{"id":101,"name":"Shirt","reviewRating":4.7,"feedbacks":12,"totalQuantity":30,
		 "sizes":[{"price":null},{"price":{"basic":250000,"product":199900,"total":205000,"logistics":5100}}]},
		{"id":102,"name":"Bare"},
		{"id":"103","sizes":[{"price":{"basic":100}}]},
		{"name":"no id","sizes":[{"price":{"basic":1}}]}
	]}}`)

	page, err := DecodeProductPage(body, "55", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 2, page.Skipped)
	require.Len(t, page.Products, 2)

	first := page.Products[0]
	assert.Equal(t, ProductKey{ID: "101", CategoryID: "55"}, first.Key())
	assert.Equal(t, "Shirt", first.Name)
	assert.InDelta(t, 4.7, first.Rating, 1e-9)
	assert.Equal(t, int64(12), first.FeedbackCount)
	assert.Equal(t, int64(30), first.Quantity)
	assert.True(t, decimal.NewFromInt(250000).Equal(first.PriceBasic))
	assert.True(t, decimal.NewFromInt(199900).Equal(first.PriceProduct))
	assert.True(t, decimal.NewFromInt(205000).Equal(first.PriceTotal))
	assert.True(t, decimal.NewFromInt(5100).Equal(first.PriceLogistics))

	second := page.Products[1]
	assert.Equal(t, ID("103"), second.ID)
	assert.Empty(t, second.Name)
	assert.Zero(t, second.Rating)
	assert.Zero(t, second.FeedbackCount)
	assert.Zero(t, second.Quantity)
	assert.True(t, second.PriceProduct.IsZero())
	assert.False(t, page.Empty())
}

func TestDecodeProductPageToleratesOddCounts(t *testing.T) {
	t.Parallel()

	body := []byte(`{"data":{"products":[
		{"id":1,"feedbacks":12.0,"totalQuantity":3.0,"sizes":[{"price":{"basic":1}}]},
		{"id":2,"feedbacks":"7","totalQuantity":2.9,"sizes":[{"price":{"basic":1}}]},
		{"id":3,"feedbacks":null,"totalQuantity":"n/a","sizes":[{"price":{"basic":1}}]},
		{"id":4,"feedbacks":1e3,"totalQuantity":-4,"sizes":[{"price":{"basic":1}}]}
	]}}`)

	page, err := DecodeProductPage(body, "9", 1)
	require.NoError(t, err)
	require.Len(t, page.Products, 4)
	assert.Zero(t, page.Skipped)

	want := [][2]int64{{12, 3}, {7, 2}, {0, 0}, {1000, 0}}
	for i, p := range page.Products {
		assert.Equal(t, want[i][0], p.FeedbackCount, "feedbacks of %s", p.ID)
		assert.Equal(t, want[i][1], p.Quantity, "quantity of %s", p.ID)
	}
}

func TestDecodeProductPageEmptyList(t *testing.T) {
	t.Parallel()

	page, err := DecodeProductPage([]byte(`{"data":{"products":[]}}`), "1", 5)
	require.NoError(t, err)
	assert.True(t, page.Empty())
}

func TestDecodeProductPageErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":     `not json`,
		"missing data":     `{}`,
		"missing products": `{"data":{}}`,
		"null products":    `{"data":{"products":null}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeProductPage([]byte(body), "1", 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProductDecode)
			var decodeErr *ProductDecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, ID("1"), decodeErr.CategoryID)
		})
	}
}
