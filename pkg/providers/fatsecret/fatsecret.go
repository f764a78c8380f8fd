// Package fatsecret adapts the FatSecret Platform API, the subscription-tier
// nutrition provider. All API calls are form-encoded POSTs to one RPC-style
// endpoint distinguished by a method parameter; authentication is OAuth2
// client-credentials with an instance-cached bearer token. Barcode lookup is
// gated behind the premier access tier.
package fatsecret

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/foodscope/foodscope/pkg/fetcherr"
	"github.com/foodscope/foodscope/pkg/product"
	"github.com/foodscope/foodscope/pkg/ratelimit"
	"github.com/foodscope/foodscope/pkg/whttp"
)

const (
	defaultAPIURL   = "https://platform.fatsecret.com/rest/server.api"
	defaultTokenURL = "https://oauth.fatsecret.com/connect/token"

	defaultTimeout    = 8 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
)

// FatSecret error envelope codes this adapter branches on.
const (
	errCodeInvalidToken = 4  // expired or malformed bearer token
	errCodeInvalidKey   = 5  // unknown client credentials
	errCodeRateLimit    = 12 // request budget exceeded upstream
	errCodePremierOnly  = 21 // method requires the premier tier
)

// Config controls the FatSecret client.
type Config struct {
	ClientID     string
	ClientSecret string

	// Premier enables barcode lookup, which FatSecret gates behind a paid
	// tier. When false the resolver skips this provider for barcodes.
	Premier bool

	APIURL   string // defaults to the platform endpoint
	TokenURL string // defaults to the OAuth2 token endpoint

	HTTP   *whttp.Client
	Limits map[string]ratelimit.Budget
}

// Client is the FatSecret provider adapter. The token cache and rate-limit
// counters live on the instance, constructed once per process, so the auth
// lifecycle is injectable and testable.
type Client struct {
	cfg      Config
	apiURL   string
	tokenURL string
	http     *whttp.Client
	limiter  *ratelimit.Limiter

	retryDelay time.Duration

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// New builds a FatSecret client.
func New(cfg Config) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = whttp.NewClient(defaultTimeout)
	}
	return &Client{
		cfg:        cfg,
		apiURL:     apiURL,
		tokenURL:   tokenURL,
		http:       httpClient,
		limiter:    ratelimit.New(cfg.Limits),
		retryDelay: defaultRetryDelay,
	}
}

func (c *Client) Name() string { return "fatsecret" }

// CanLookupBarcode reports whether the configured tier includes barcode
// lookup (food.find_id_for_barcode is premier-only).
func (c *Client) CanLookupBarcode() bool { return c.cfg.Premier }

// LookupBarcode resolves a barcode to a food id, then fetches the full food
// record. Not found is (nil, nil).
func (c *Client) LookupBarcode(ctx context.Context, code string) (*product.Data, error) {
	if !c.cfg.Premier {
		return nil, fetcherr.NewAPIError(http.StatusForbidden, fetcherr.CodeFeatureUnavailable,
			"fatsecret barcode lookup requires the premier tier")
	}

	params := url.Values{}
	params.Set("barcode", code)
	body, err := c.call(ctx, "barcode", "food.find_id_for_barcode", params)
	if err != nil {
		return nil, err
	}

	foodID := gjson.Get(body, "food_id.value").String()
	if foodID == "" || foodID == "0" {
		return nil, nil
	}
	return c.getFood(ctx, foodID)
}

// SearchByName runs a free-text search. Result descriptions carry the macro
// quartet per 100g for generic foods; branded entries may be per serving, in
// which case the nutrient fields stay absent rather than lie about the basis.
func (c *Client) SearchByName(ctx context.Context, query string, limit int) ([]product.Data, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("search_expression", query)
	params.Set("max_results", strconv.Itoa(limit))
	body, err := c.call(ctx, "search", "foods.search", params)
	if err != nil {
		return nil, err
	}

	var out []product.Data
	for _, food := range gjson.Get(body, "foods.food").Array() {
		if len(out) >= limit {
			break
		}
		out = append(out, mapSearchResult(food))
	}
	return out, nil
}

// getFood fetches and maps a full food record by id.
func (c *Client) getFood(ctx context.Context, foodID string) (*product.Data, error) {
	params := url.Values{}
	params.Set("food_id", foodID)
	body, err := c.call(ctx, "barcode", "food.get.v4", params)
	if err != nil {
		return nil, err
	}

	food := gjson.Get(body, "food")
	if !food.Exists() {
		return nil, nil
	}
	data := mapFood(food)
	return &data, nil
}

// call performs one RPC-style request: local rate limit check, bearer token,
// form-encoded POST with the method parameter, structured error mapping.
func (c *Client) call(ctx context.Context, category, method string, params url.Values) (string, error) {
	if !c.limiter.Allow(category) {
		return "", fetcherr.NewAPIError(http.StatusTooManyRequests, fetcherr.CodeRateLimitedLocal,
			fmt.Sprintf("local fatsecret %s budget exhausted", category))
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	for k, vs := range params {
		form[k] = vs
	}
	form.Set("method", method)
	form.Set("format", "json")

	res, err := c.http.Do(ctx, &whttp.Request{
		Method: http.MethodPost,
		URL:    c.apiURL,
		Form:   form,
		Headers: []whttp.Header{
			{Name: "Authorization", Value: "Bearer " + token},
		},
	})
	if err != nil {
		return "", err
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		c.InvalidateToken()
		return "", fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeAuthFailed,
			"fatsecret rejected the access token")
	case res.StatusCode == http.StatusTooManyRequests:
		return "", fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeRateLimited,
			"fatsecret rate limit reached")
	}

	if errNode := gjson.Get(res.Body, "error"); errNode.Exists() {
		return "", c.mapEnvelopeError(res.StatusCode, errNode)
	}
	if res.StatusCode != http.StatusOK {
		return "", fetcherr.NewAPIError(res.StatusCode, fetcherr.CodeUpstream,
			fmt.Sprintf("fatsecret returned status %d", res.StatusCode))
	}
	return res.Body, nil
}

// mapEnvelopeError translates FatSecret's {"error":{"code":N,"message":M}}
// envelope into the shared taxonomy.
func (c *Client) mapEnvelopeError(status int, errNode gjson.Result) *fetcherr.APIError {
	code := errNode.Get("code").Int()
	msg := errNode.Get("message").String()
	if status == 0 || status == http.StatusOK {
		status = http.StatusBadGateway
	}

	switch code {
	case errCodeInvalidToken, errCodeInvalidKey:
		c.InvalidateToken()
		return fetcherr.NewAPIError(http.StatusUnauthorized, fetcherr.CodeAuthFailed, msg)
	case errCodeRateLimit:
		return fetcherr.NewAPIError(http.StatusTooManyRequests, fetcherr.CodeRateLimited, msg)
	case errCodePremierOnly:
		return fetcherr.NewAPIError(http.StatusForbidden, fetcherr.CodeFeatureUnavailable, msg)
	default:
		return fetcherr.NewAPIError(status, fetcherr.CodeUpstream,
			fmt.Sprintf("fatsecret error %d: %s", code, msg))
	}
}

// mapFood translates a food.get.v4 record. FatSecret reports per-serving
// values as strings; the metric 100g serving is preferred, any other metric
// serving is rescaled to the 100g basis.
func mapFood(food gjson.Result) product.Data {
	d := product.Data{
		ID:       "fatsecret:" + food.Get("food_id").String(),
		Name:     food.Get("food_name").String(),
		Brand:    food.Get("brand_name").String(),
		ImageURL: food.Get("food_images.food_image.0.image_url").String(),
	}

	serving := pickServing(food.Get("servings.serving"))
	if !serving.Exists() {
		return d
	}

	metricAmount := parseFloat(serving.Get("metric_serving_amount").String())
	metricUnit := serving.Get("metric_serving_unit").String()
	if metricAmount != nil && *metricAmount > 0 {
		d.Serving = product.Serving{Size: *metricAmount, Unit: metricUnit}
	}

	factor := 1.0
	if metricAmount != nil && *metricAmount > 0 && (metricUnit == "g" || metricUnit == "ml") {
		factor = 100 / *metricAmount
	}

	d.NutritionalInfo = product.NutritionalInfo{
		Calories:           scaled(serving, "calories", factor),
		Protein:            scaled(serving, "protein", factor),
		Carbohydrates:      scaled(serving, "carbohydrate", factor),
		Fat:                scaled(serving, "fat", factor),
		Fiber:              scaled(serving, "fiber", factor),
		Sodium:             scaled(serving, "sodium", factor),
		Sugars:             scaled(serving, "sugar", factor),
		SaturatedFat:       scaled(serving, "saturated_fat", factor),
		Cholesterol:        scaled(serving, "cholesterol", factor),
		TransFat:           scaled(serving, "trans_fat", factor),
		MonounsaturatedFat: scaled(serving, "monounsaturated_fat", factor),
		PolyunsaturatedFat: scaled(serving, "polyunsaturated_fat", factor),
		Potassium:          scaled(serving, "potassium", factor),
		Calcium:            scaled(serving, "calcium", factor),
		Iron:               scaled(serving, "iron", factor),
		VitaminA:           scaled(serving, "vitamin_a", factor),
		VitaminC:           scaled(serving, "vitamin_c", factor),
		VitaminD:           scaled(serving, "vitamin_d", factor),
	}
	return d
}

// pickServing chooses the 100g/100ml metric serving when present, otherwise
// the first serving. FatSecret encodes a single serving as an object rather
// than a one-element array.
func pickServing(node gjson.Result) gjson.Result {
	if !node.IsArray() {
		return node
	}
	servings := node.Array()
	if len(servings) == 0 {
		return gjson.Result{}
	}
	for _, s := range servings {
		amount := parseFloat(s.Get("metric_serving_amount").String())
		unit := s.Get("metric_serving_unit").String()
		if amount != nil && *amount == 100 && (unit == "g" || unit == "ml") {
			return s
		}
	}
	return servings[0]
}

// searchDescriptionPattern matches the macro summary FatSecret embeds in
// search results, e.g. "Per 100g - Calories: 539kcal | Fat: 30.90g |
// Carbs: 57.50g | Protein: 6.00g".
var searchDescriptionPattern = regexp.MustCompile(
	`Calories: ([\d.]+)kcal \| Fat: ([\d.]+)g \| Carbs: ([\d.]+)g \| Protein: ([\d.]+)g`)

func mapSearchResult(food gjson.Result) product.Data {
	d := product.Data{
		ID:    "fatsecret:" + food.Get("food_id").String(),
		Name:  food.Get("food_name").String(),
		Brand: food.Get("brand_name").String(),
	}

	desc := food.Get("food_description").String()
	if !strings.HasPrefix(desc, "Per 100g") {
		// Per-serving summary; leave nutrients absent rather than report
		// them on the wrong basis.
		return d
	}
	m := searchDescriptionPattern.FindStringSubmatch(desc)
	if m == nil {
		return d
	}
	d.Calories = product.Clamp(parseFloat(m[1]))
	d.Fat = product.Clamp(parseFloat(m[2]))
	d.Carbohydrates = product.Clamp(parseFloat(m[3]))
	d.Protein = product.Clamp(parseFloat(m[4]))
	return d
}

func scaled(serving gjson.Result, key string, factor float64) *float64 {
	v := parseFloat(serving.Get(key).String())
	if v == nil {
		return nil
	}
	out := *v * factor
	return product.Clamp(&out)
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
