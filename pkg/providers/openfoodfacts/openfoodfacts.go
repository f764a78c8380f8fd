// Package openfoodfacts adapts the Open Food Facts community database.
// Lookups are unauthenticated; the product document carries a status flag
// (1 = found, 0 = not found) and a nutriments map with dash/underscore-keyed
// per-100g and per-serving variants, which goes through pkg/nutrient.
package openfoodfacts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/foodscope/foodscope/pkg/fetcherr"
	"github.com/foodscope/foodscope/pkg/nutrient"
	"github.com/foodscope/foodscope/pkg/product"
	"github.com/foodscope/foodscope/pkg/ratelimit"
	"github.com/foodscope/foodscope/pkg/whttp"
)

const (
	defaultBaseURL = "https://world.openfoodfacts.org"

	// The public aggregator is slow under load; give it more room than a
	// commercial API before declaring a timeout.
	defaultTimeout = 15 * time.Second
)

// Config controls the Open Food Facts client.
type Config struct {
	BaseURL string            // defaults to the public instance
	HTTP    *whttp.Client     // defaults to a client with defaultTimeout
	Limits  map[string]ratelimit.Budget
}

// Client is the Open Food Facts provider adapter.
type Client struct {
	baseURL string
	http    *whttp.Client
	limiter *ratelimit.Limiter
}

// New builds an Open Food Facts client.
func New(cfg Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = whttp.NewClient(defaultTimeout)
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		limiter: ratelimit.New(cfg.Limits),
	}
}

func (c *Client) Name() string { return "openfoodfacts" }

// CanLookupBarcode is always true: the community database has no access tiers.
func (c *Client) CanLookupBarcode() bool { return true }

// LookupBarcode fetches a product document by barcode. Not found is (nil, nil).
func (c *Client) LookupBarcode(ctx context.Context, code string) (*product.Data, error) {
	if !c.limiter.Allow("barcode") {
		return nil, fetcherr.NewAPIError(http.StatusTooManyRequests, fetcherr.CodeRateLimitedLocal,
			"local openfoodfacts barcode budget exhausted")
	}

	reqURL := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(code))
	res, err := c.http.Do(ctx, &whttp.Request{Method: http.MethodGet, URL: reqURL})
	if err != nil {
		return nil, err
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, nil
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeRateLimited,
			"openfoodfacts rate limit reached")
	case res.StatusCode != http.StatusOK:
		return nil, fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeUpstream,
			fmt.Sprintf("openfoodfacts returned status %d", res.StatusCode))
	}

	if gjson.Get(res.Body, "status").Int() != 1 {
		return nil, nil
	}

	data := mapProduct(gjson.Get(res.Body, "product"))
	return &data, nil
}

// SearchByName runs a free-text search and maps up to limit results.
func (c *Client) SearchByName(ctx context.Context, query string, limit int) ([]product.Data, error) {
	if !c.limiter.Allow("search") {
		return nil, fetcherr.NewAPIError(http.StatusTooManyRequests, fetcherr.CodeRateLimitedLocal,
			"local openfoodfacts search budget exhausted")
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(limit))

	reqURL := c.baseURL + "/cgi/search.pl?" + params.Encode()
	res, err := c.http.Do(ctx, &whttp.Request{Method: http.MethodGet, URL: reqURL})
	if err != nil {
		return nil, err
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeRateLimited,
			"openfoodfacts rate limit reached")
	case res.StatusCode != http.StatusOK:
		return nil, fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeUpstream,
			fmt.Sprintf("openfoodfacts returned status %d", res.StatusCode))
	}

	var out []product.Data
	for _, raw := range gjson.Get(res.Body, "products").Array() {
		if len(out) >= limit {
			break
		}
		out = append(out, mapProduct(raw))
	}
	return out, nil
}

// mapProduct translates one Open Food Facts product document into the
// canonical record. All nutrient extraction goes through pkg/nutrient; no
// key-variant logic lives here.
func mapProduct(doc gjson.Result) product.Data {
	nutriments, _ := doc.Get("nutriments").Value().(map[string]any)

	n := product.NutritionalInfo{
		Calories:           product.Clamp(nutrient.Calories(nutriments)),
		Protein:            extract(nutriments, "proteins"),
		Carbohydrates:      extract(nutriments, "carbohydrates"),
		Fat:                extract(nutriments, "fat"),
		Fiber:              extract(nutriments, "fiber"),
		Sodium:             extract(nutriments, "sodium"),
		Sugars:             extract(nutriments, "sugars"),
		SaturatedFat:       extract(nutriments, "saturated-fat"),
		Cholesterol:        extract(nutriments, "cholesterol"),
		TransFat:           extract(nutriments, "trans-fat"),
		MonounsaturatedFat: extract(nutriments, "monounsaturated-fat"),
		PolyunsaturatedFat: extract(nutriments, "polyunsaturated-fat"),
		Salt:               extract(nutriments, "salt"),
		Potassium:          extract(nutriments, "potassium"),
		Calcium:            extract(nutriments, "calcium"),
		Iron:               extract(nutriments, "iron"),
		VitaminA:           extract(nutriments, "vitamin-a"),
		VitaminC:           extract(nutriments, "vitamin-c"),
		VitaminD:           extract(nutriments, "vitamin-d"),
		VitaminB6:          extract(nutriments, "vitamin-b6"),
		VitaminB12:         extract(nutriments, "vitamin-b12"),
		VitaminE:           extract(nutriments, "vitamin-e"),
		Magnesium:          extract(nutriments, "magnesium"),
		Zinc:               extract(nutriments, "zinc"),
		Sucrose:            extract(nutriments, "sucrose"),
		Fructose:           extract(nutriments, "fructose"),
		Lactose:            extract(nutriments, "lactose"),
		Starch:             extract(nutriments, "starch"),
		Alcohol:            extract(nutriments, "alcohol"),
	}

	code := doc.Get("code").String()
	d := product.Data{
		NutritionalInfo: n,
		ID:              "off:" + code,
		Barcode:         code,
		Name:            doc.Get("product_name").String(),
		Brand:           doc.Get("brands").String(),
		UpstreamGrade:   doc.Get("nutrition_grades_tags.0").String(),
		ImageURL:        doc.Get("image_url").String(),
		EcoScore:        doc.Get("ecoscore_grade").String(),
		NovaGroup:       int(doc.Get("nova_group").Int()),
		Ingredients:     doc.Get("ingredients_text").String(),
	}

	if size := doc.Get("serving_quantity").Float(); size > 0 {
		unit := doc.Get("serving_quantity_unit").String()
		if unit == "" {
			unit = "g"
		}
		d.Serving = product.Serving{Size: size, Unit: unit}
	}

	return d
}

func extract(nutriments map[string]any, key string) *float64 {
	return product.Clamp(nutrient.Extract(nutriments, key))
}
