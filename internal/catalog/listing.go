package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultListingBaseURL is the catalog host serving per-shard listings.
const DefaultListingBaseURL = "https://catalog.wb.ru/catalog"

// ListingURL builds per-page listing URLs of the form
// {BaseURL}/{shardKey}/v2/catalog?...&cat={id}&...&page={n}.
type ListingURL struct {
	BaseURL string
	// Params are static query parameters sent with every listing request.
	Params map[string]string
}

// Build returns the listing URL for one category page. Pages are 1-based.
func (l ListingURL) Build(shardKey string, categoryID ID, page int) (string, error) {
	if strings.TrimSpace(shardKey) == "" {
		return "", errors.New("shard key is required")
	}
	if categoryID == "" {
		return "", errors.New("category id is required")
	}
	if page < 1 {
		return "", fmt.Errorf("page must be >= 1, got %d", page)
	}
	base := strings.TrimRight(l.BaseURL, "/")
	if base == "" {
		base = DefaultListingBaseURL
	}
	q := url.Values{}
	for k, v := range l.Params {
		q.Set(k, v)
	}
	q.Set("cat", categoryID.String())
	q.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s/%s/v2/catalog?%s", base, url.PathEscape(shardKey), q.Encode()), nil
}

type listingEnvelope struct {
	Data *struct {
		Products *[]rawProduct `json:"products"`
	} `json:"data"`
}

type rawProduct struct {
	ID            *ID       `json:"id"`
	Name          string    `json:"name"`
	ReviewRating  float64   `json:"reviewRating"`
	Feedbacks     count     `json:"feedbacks"`
	TotalQuantity count     `json:"totalQuantity"`
	Sizes         []rawSize `json:"sizes"`
}

// count is a non-negative tally that tolerates float, quoted and malformed
// values. Fractions are truncated and anything unparseable reads as zero.
type count int64

func (c *count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		*c = 0
		return nil
	}
	*c = count(d.IntPart())
	return nil
}

type rawSize struct {
	Price *rawPrice `json:"price"`
}

type rawPrice struct {
	Basic     decimal.Decimal `json:"basic"`
	Product   decimal.Decimal `json:"product"`
	Total     decimal.Decimal `json:"total"`
	Logistics decimal.Decimal `json:"logistics"`
}

// DecodeProductPage decodes a listing body into products owned by categoryID.
// Entries without an id or without any priced size are skipped and counted.
func DecodeProductPage(body []byte, categoryID ID, page int) (Page, error) {
	var env listingEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Page{}, &ProductDecodeError{CategoryID: categoryID, Page: page, Err: err}
	}
	if env.Data == nil || env.Data.Products == nil {
		return Page{}, &ProductDecodeError{
			CategoryID: categoryID,
			Page:       page,
			Err:        errors.New("missing data.products"),
		}
	}
	raw := *env.Data.Products
	out := Page{Number: page, Products: make([]Product, 0, len(raw))}
	for _, rp := range raw {
		price, ok := firstPrice(rp.Sizes)
		if !ok || rp.ID == nil || *rp.ID == "" {
			out.Skipped++
			continue
		}
		out.Products = append(out.Products, Product{
			ID:             *rp.ID,
			CategoryID:     categoryID,
			Name:           rp.Name,
			Rating:         rp.ReviewRating,
			FeedbackCount:  int64(rp.Feedbacks),
			Quantity:       int64(rp.TotalQuantity),
			PriceBasic:     price.Basic,
			PriceProduct:   price.Product,
			PriceTotal:     price.Total,
			PriceLogistics: price.Logistics,
		})
	}
	return out, nil
}

func firstPrice(sizes []rawSize) (rawPrice, bool) {
	for _, s := range sizes {
		if s.Price != nil {
			return *s.Price, true
		}
	}
	return rawPrice{}, false
}
