package normalize

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"propsignal/internal/config"
)

// AddressQuery is one address to geocode, tagged with its property.
type AddressQuery struct {
	PropertyID   int64
	Address      string
	BoroughOrZip string
}

// BatchResult pairs a query with its outcome. Failures are carried, not
// dropped, so callers can account for them.
type BatchResult struct {
	Query  AddressQuery
	Result *GeocodeResult
	Err    error
}

// BatchGeocoder runs geocoder lookups in bounded concurrency windows under
// a requests-per-second ceiling. The limiter gates every request, so
// exceeding the upstream quota is structurally impossible rather than
// merely discouraged.
type BatchGeocoder struct {
	gc            *Geoclient
	maxConcurrent int
	limiter       *rate.Limiter
	log           zerolog.Logger
}

// NewBatchGeocoder creates a batch geocoder from config.
func NewBatchGeocoder(gc *Geoclient, cfg config.GeoclientConfig, log zerolog.Logger) *BatchGeocoder {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 8
	}

	return &BatchGeocoder{
		gc:            gc,
		maxConcurrent: maxConcurrent,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		log:           log.With().Str("component", "geocoder").Logger(),
	}
}

// GeocodeAll processes queries through the worker pool and returns one
// result per query, in input order. Returns ErrNotConfigured immediately
// when the geocoder has no key.
func (b *BatchGeocoder) GeocodeAll(ctx context.Context, queries []AddressQuery) ([]BatchResult, error) {
	if !b.gc.Available() {
		return nil, ErrNotConfigured
	}

	results := make([]BatchResult, len(queries))
	pool := pond.NewPool(b.maxConcurrent)

	for i, q := range queries {
		i, q := i, q
		pool.Submit(func() {
			if err := b.limiter.Wait(ctx); err != nil {
				results[i] = BatchResult{Query: q, Err: err}
				return
			}
			res, err := b.gc.Lookup(ctx, q.Address, q.BoroughOrZip)
			results[i] = BatchResult{Query: q, Result: res, Err: err}
		})
	}

	pool.StopAndWait()

	succeeded := 0
	for i := range results {
		if results[i].Err == nil {
			succeeded++
		}
	}
	b.log.Info().
		Int("queries", len(queries)).
		Int("succeeded", succeeded).
		Msg("batch geocode complete")

	return results, nil
}
