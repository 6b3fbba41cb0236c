package mapbox

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory expiring LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *expirable.LRU[string, domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   expirable.NewLRU[string, domain.GeocodingResult](maxEntries, nil, ttl),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, at domain.Coordinate) (domain.GeocodingResult, error) {
	key := cacheKey(at)
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, at)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.cache.Add(key, result)
	}
	return result, nil
}

// cacheKey rounds to about 11 cm, well below the claim radius.
func cacheKey(at domain.Coordinate) string {
	return fmt.Sprintf("rev:%.6f,%.6f", at.Lat, at.Lng)
}
