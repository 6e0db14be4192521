package openweather

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/observability"
	gocache "github.com/patrickmn/go-cache"
)

// CachedProvider wraps a WeatherProvider with an in-memory TTL cache keyed by
// the click rounded to 1e-4 degrees.
type CachedProvider struct {
	inner   domain.WeatherProvider
	cache   *gocache.Cache
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a weather provider.
func NewCachedProvider(inner domain.WeatherProvider, ttl time.Duration, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   gocache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

func (c *CachedProvider) Fetch(ctx context.Context, lat, lon float64) domain.WeatherResult {
	key := cacheKey(lat, lon)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return v.(domain.WeatherResult)
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	result := c.inner.Fetch(ctx, lat, lon)
	// Only successful results are cached so failures are retried on the next click.
	if result.Kind == domain.WeatherOK {
		c.cache.SetDefault(key, result)
	}
	return result
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}
