// Package resolver orchestrates product resolution across the local cache and
// the configured remote providers. Barcode resolution is read-through: cache
// first, then each provider in priority order, then an async write-back of
// whatever was found.
package resolver

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/foodscope/foodscope/pkg/barcode"
	"github.com/foodscope/foodscope/pkg/fetcherr"
	"github.com/foodscope/foodscope/pkg/product"
	"github.com/foodscope/foodscope/pkg/providers"
)

// Cache is the persistence surface the resolver needs. A miss is (nil, nil).
type Cache interface {
	FindByBarcode(ctx context.Context, code string) (*product.Data, error)
	UpsertProduct(ctx context.Context, p *product.Data) error
}

// Logger is the subset of logging the resolver uses, satisfied by logrus.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Config wires a Resolver.
type Config struct {
	Cache     Cache
	Providers []providers.Provider // tried in order; first hit wins

	Log Logger

	// SyncWriteBack makes cache writes block the resolve call instead of
	// running detached. Used by the CLI one-shot commands and tests.
	SyncWriteBack bool
}

// Resolver answers barcode and name lookups against cache plus providers.
type Resolver struct {
	cache     Cache
	providers []providers.Provider
	log       Logger
	sync      bool

	wg sync.WaitGroup
}

// New builds a Resolver from cfg. Cache may be nil, in which case every
// lookup goes straight to the providers and nothing is written back.
func New(cfg Config) *Resolver {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Resolver{
		cache:     cfg.Cache,
		providers: cfg.Providers,
		log:       log,
		sync:      cfg.SyncWriteBack,
	}
}

// ResolveByBarcode looks up one product by barcode. The code is validated and
// normalized before any provider sees it; the normalized form is the cache
// key. Not found anywhere is (nil, nil). A provider failure is only surfaced
// when no later provider produced a result.
func (r *Resolver) ResolveByBarcode(ctx context.Context, code string) (*product.Data, error) {
	code = strings.TrimSpace(code)
	if !barcode.IsValid(code) {
		return nil, fetcherr.NewAPIError(http.StatusBadRequest, fetcherr.CodeInvalidInput,
			"barcode must be 8 to 14 digits")
	}
	code = barcode.Normalize(code)

	if r.cache != nil {
		cached, err := r.cache.FindByBarcode(ctx, code)
		if err != nil {
			r.log.Warnf("cache read for %s failed: %v", code, err)
		} else if cached != nil {
			r.log.Debugf("cache hit for %s", code)
			return cached, nil
		}
	}

	var lastErr error
	for _, p := range r.providers {
		if !p.CanLookupBarcode() {
			r.log.Debugf("provider %s cannot look up barcodes, skipping", p.Name())
			continue
		}
		found, err := p.LookupBarcode(ctx, code)
		if err != nil {
			r.log.Warnf("provider %s failed for %s: %v", p.Name(), code, err)
			lastErr = err
			continue
		}
		if found == nil {
			// An authoritative not-found supersedes an earlier
			// provider's failure; only the last attempt's error
			// propagates.
			lastErr = nil
			continue
		}
		r.finalize(found, code)
		r.writeBack(found)
		return found, nil
	}
	return nil, lastErr
}

// ResolveByName fans a free-text query out to every provider and concatenates
// the results in provider order, capped at limit. Name search never touches
// the cache. Partial provider failures degrade to fewer results.
func (r *Resolver) ResolveByName(ctx context.Context, query string, limit int) ([]product.Data, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, fetcherr.NewAPIError(http.StatusBadRequest, fetcherr.CodeInvalidInput,
			"search query must be at least 2 characters")
	}
	if limit <= 0 {
		limit = 20
	}

	var out []product.Data
	for _, p := range r.providers {
		if len(out) >= limit {
			break
		}
		results, err := p.SearchByName(ctx, query, limit-len(out))
		if err != nil {
			r.log.Warnf("provider %s search %q failed: %v", p.Name(), query, err)
			continue
		}
		for i := range results {
			results[i].NutriGrade = product.CalculateNutriGrade(results[i].NutritionalInfo)
			results[i].MissingCritical = results[i].NutritionalInfo.MissingCritical()
		}
		out = append(out, results...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// finalize stamps the fields the resolver owns: the normalized barcode, the
// computed grade, and the completeness flags.
func (r *Resolver) finalize(p *product.Data, code string) {
	p.Barcode = code
	p.NutriGrade = product.CalculateNutriGrade(p.NutritionalInfo)
	p.MissingCritical = p.NutritionalInfo.MissingCritical()
	p.Verified = !p.MissingCritical
}

// writeBack persists a resolved product. By default it runs detached so a
// slow disk never delays the response; Wait flushes pending writes.
func (r *Resolver) writeBack(p *product.Data) {
	if r.cache == nil {
		return
	}
	cp := *p
	store := func() {
		if err := r.cache.UpsertProduct(context.Background(), &cp); err != nil {
			r.log.Warnf("cache write for %s failed: %v", cp.Barcode, err)
		}
	}
	if r.sync {
		store()
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		store()
	}()
}

// Wait blocks until all detached cache writes have finished.
func (r *Resolver) Wait() {
	r.wg.Wait()
}
