// Package providers defines the common interface every external nutrition
// database adapter implements, abstracting away per-provider authentication,
// request shapes and response mapping.
package providers

import (
	"context"

	"github.com/foodscope/foodscope/pkg/product"
)

// Provider wraps one external nutrition data source. Implementations assume
// barcodes were validated and normalized at the resolver boundary.
//
// A "not found" outcome is (nil, nil) / (empty, nil), never an error. A
// transport failure is a *fetcherr.NetworkError; a provider-structured
// failure is a *fetcherr.APIError.
type Provider interface {
	Name() string

	// CanLookupBarcode reports whether barcode lookup is available on the
	// configured access tier, so the resolver can skip the provider
	// cleanly instead of failing every time.
	CanLookupBarcode() bool

	LookupBarcode(ctx context.Context, barcode string) (*product.Data, error)
	SearchByName(ctx context.Context, query string, limit int) ([]product.Data, error)
}
