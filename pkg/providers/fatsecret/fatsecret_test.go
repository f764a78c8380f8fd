package fatsecret

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foodscope/foodscope/pkg/fetcherr"
	"github.com/foodscope/foodscope/pkg/ratelimit"
)

type fixture struct {
	client        *Client
	tokenRequests *int64
	apiRequests   *int64
}

// newFixture spins up fake token and API endpoints. apiHandler receives the
// parsed form so tests can branch on the method parameter.
func newFixture(t *testing.T, premier bool, apiHandler func(w http.ResponseWriter, r *http.Request)) *fixture {
	t.Helper()

	var tokenCount, apiCount int64

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&tokenCount, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        r.FormValue("scope"),
		})
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&apiCount, 1)
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.ParseForm()
		apiHandler(w, r)
	}))
	t.Cleanup(apiSrv.Close)

	c := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Premier:      premier,
		APIURL:       apiSrv.URL,
		TokenURL:     tokenSrv.URL,
	})
	c.retryDelay = time.Millisecond

	return &fixture{client: c, tokenRequests: &tokenCount, apiRequests: &apiCount}
}

const foodGetBody = `{
	"food": {
		"food_id": "38821",
		"food_name": "Hazelnut Spread",
		"brand_name": "Ferrero",
		"servings": {
			"serving": [
				{
					"metric_serving_amount": "100.000",
					"metric_serving_unit": "g",
					"calories": "539",
					"protein": "6.00",
					"carbohydrate": "57.50",
					"fat": "30.90",
					"sugar": "56.30",
					"saturated_fat": "10.60",
					"sodium": "107"
				},
				{
					"metric_serving_amount": "15.000",
					"metric_serving_unit": "g",
					"calories": "81",
					"protein": "0.90"
				}
			]
		}
	}
}`

func TestLookupBarcodeFullFlow(t *testing.T) {
	f := newFixture(t, true, func(w http.ResponseWriter, r *http.Request) {
		switch r.FormValue("method") {
		case "food.find_id_for_barcode":
			if r.FormValue("barcode") != "3017620422003" {
				t.Errorf("barcode param = %q", r.FormValue("barcode"))
			}
			w.Write([]byte(`{"food_id": {"value": "38821"}}`))
		case "food.get.v4":
			if r.FormValue("food_id") != "38821" {
				t.Errorf("food_id param = %q", r.FormValue("food_id"))
			}
			w.Write([]byte(foodGetBody))
		default:
			t.Errorf("unexpected method %q", r.FormValue("method"))
		}
	})

	got, err := f.client.LookupBarcode(context.Background(), "3017620422003")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a product")
	}
	if got.ID != "fatsecret:38821" {
		t.Errorf("id = %q", got.ID)
	}
	if got.Calories == nil || *got.Calories != 539 {
		t.Errorf("calories = %v, want 539 from the 100g serving", got.Calories)
	}
	if got.Protein == nil || *got.Protein != 6 {
		t.Errorf("protein = %v, want 6", got.Protein)
	}
	if got.Serving.Size != 100 || got.Serving.Unit != "g" {
		t.Errorf("serving = %+v, want the metric 100g serving", got.Serving)
	}
	if n := atomic.LoadInt64(f.tokenRequests); n != 1 {
		t.Errorf("expected one token request for two API calls, got %d", n)
	}
}

func TestLookupBarcodeNotFound(t *testing.T) {
	f := newFixture(t, true, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"food_id": {"value": "0"}}`))
	})

	got, err := f.client.LookupBarcode(context.Background(), "40000000")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for unmatched barcode, got %v / %v", got, err)
	}
}

func TestLookupBarcodeWithoutPremier(t *testing.T) {
	f := newFixture(t, false, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the API without premier")
	})

	if f.client.CanLookupBarcode() {
		t.Fatal("capability flag must be off without premier")
	}
	_, err := f.client.LookupBarcode(context.Background(), "40000000")
	if !fetcherr.IsCode(err, fetcherr.CodeFeatureUnavailable) {
		t.Fatalf("expected feature_unavailable, got %v", err)
	}
}

func TestTokenCachedAcrossCalls(t *testing.T) {
	f := newFixture(t, true, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"foods": {"food": []}}`))
	})

	for i := 0; i < 3; i++ {
		if _, err := f.client.SearchByName(context.Background(), "yogurt", 5); err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt64(f.tokenRequests); n != 1 {
		t.Fatalf("token must be cached, saw %d token requests", n)
	}
}

func TestInvalidCredentialsNotRetried(t *testing.T) {
	var tokenCount int64
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&tokenCount, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	c := New(Config{
		ClientID:     "bad",
		ClientSecret: "creds",
		Premier:      true,
		APIURL:       "http://127.0.0.1:0",
		TokenURL:     tokenSrv.URL,
	})
	c.retryDelay = time.Millisecond

	_, err := c.LookupBarcode(context.Background(), "40000000")
	if !fetcherr.IsCode(err, fetcherr.CodeAuthFailed) {
		t.Fatalf("expected auth_failed, got %v", err)
	}
	if n := atomic.LoadInt64(&tokenCount); n != 1 {
		t.Fatalf("credential rejection must not be retried, saw %d attempts", n)
	}
}

func TestTokenTransientFailureRetried(t *testing.T) {
	var tokenCount int64
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&tokenCount, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"foods": {"food": []}}`))
	}))
	defer apiSrv.Close()

	c := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		APIURL:       apiSrv.URL,
		TokenURL:     tokenSrv.URL,
	})
	c.retryDelay = time.Millisecond

	if _, err := c.SearchByName(context.Background(), "yogurt", 5); err != nil {
		t.Fatalf("expected recovery after transient failures, got %v", err)
	}
	if n := atomic.LoadInt64(&tokenCount); n != 3 {
		t.Fatalf("expected 3 token attempts, got %d", n)
	}
}

func TestAPI401InvalidatesToken(t *testing.T) {
	var apiCount int64
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&apiCount, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer apiSrv.Close()

	c := New(Config{ClientID: "id", ClientSecret: "secret", APIURL: apiSrv.URL, TokenURL: tokenSrv.URL})
	c.retryDelay = time.Millisecond

	_, err := c.SearchByName(context.Background(), "yogurt", 5)
	if !fetcherr.IsCode(err, fetcherr.CodeAuthFailed) {
		t.Fatalf("expected auth_failed, got %v", err)
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		t.Fatal("401 must invalidate the cached token")
	}
}

func TestEnvelopeErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		wantCode string
	}{
		{"invalid token", errCodeInvalidToken, fetcherr.CodeAuthFailed},
		{"invalid key", errCodeInvalidKey, fetcherr.CodeAuthFailed},
		{"rate limited", errCodeRateLimit, fetcherr.CodeRateLimited},
		{"premier only", errCodePremierOnly, fetcherr.CodeFeatureUnavailable},
		{"anything else", 106, fetcherr.CodeUpstream},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, true, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"code": tc.code, "message": "nope"},
				})
			})
			_, err := f.client.SearchByName(context.Background(), "yogurt", 5)
			if !fetcherr.IsCode(err, tc.wantCode) {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestLocalRateLimitFailsFast(t *testing.T) {
	var apiCount int64
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer tokenSrv.Close()
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&apiCount, 1)
		w.Write([]byte(`{"foods": {"food": []}}`))
	}))
	defer apiSrv.Close()

	c := New(Config{
		ClientID: "id", ClientSecret: "secret",
		APIURL: apiSrv.URL, TokenURL: tokenSrv.URL,
		Limits: map[string]ratelimit.Budget{
			"search": {Requests: 1, Window: time.Minute},
		},
	})
	c.retryDelay = time.Millisecond

	if _, err := c.SearchByName(context.Background(), "yogurt", 5); err != nil {
		t.Fatal(err)
	}
	_, err := c.SearchByName(context.Background(), "yogurt", 5)
	if !fetcherr.IsCode(err, fetcherr.CodeRateLimitedLocal) {
		t.Fatalf("expected rate_limited_local, got %v", err)
	}
	if n := atomic.LoadInt64(&apiCount); n != 1 {
		t.Fatalf("second search must not reach the API, saw %d requests", n)
	}
}

func TestSearchByNameMapsDescriptions(t *testing.T) {
	f := newFixture(t, true, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"foods": {
				"food": [
					{
						"food_id": "38821",
						"food_name": "Hazelnut Spread",
						"brand_name": "Ferrero",
						"food_description": "Per 100g - Calories: 539kcal | Fat: 30.90g | Carbs: 57.50g | Protein: 6.00g"
					},
					{
						"food_id": "99999",
						"food_name": "Granola Bar",
						"food_description": "Per 1 bar - Calories: 120kcal | Fat: 4.00g | Carbs: 18.00g | Protein: 2.00g"
					}
				]
			}
		}`))
	})

	got, err := f.client.SearchByName(context.Background(), "spread", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Calories == nil || *got[0].Calories != 539 {
		t.Errorf("per-100g description must be parsed, got %v", got[0].Calories)
	}
	if got[1].Calories != nil {
		t.Error("per-serving description must leave nutrients absent")
	}
}
