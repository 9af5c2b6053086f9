package services

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"wheel-screener/interfaces"
)

// DefaultQuoteCacheTTL keeps raw chains for one hour
const DefaultQuoteCacheTTL = time.Hour

// CachedChainSource memoizes raw chains of another source for a TTL.
// Only successful fetches are cached.
type CachedChainSource struct {
	source interfaces.OptionChainSource
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewCachedChainSource wraps source with a TTL cache; ttl <= 0 uses DefaultQuoteCacheTTL
func NewCachedChainSource(source interfaces.OptionChainSource, ttl time.Duration) *CachedChainSource {
	if ttl <= 0 {
		ttl = DefaultQuoteCacheTTL
	}
	return &CachedChainSource{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
		logger: newLogger(),
	}
}

func (c *CachedChainSource) Name() string { return c.source.Name() }

func (c *CachedChainSource) Provenance() interfaces.Provenance { return c.source.Provenance() }

// FetchChain serves a cached chain or delegates to the wrapped source
func (c *CachedChainSource) FetchChain(ctx context.Context, ticker string) (*interfaces.RawChain, error) {
	key := strings.ToUpper(ticker)
	if item, found := c.cache.Get(key); found {
		c.logger.WithFields(logrus.Fields{
			"symbol": ticker,
			"source": c.source.Name(),
		}).Debug("Quote cache hit")
		return item.(*interfaces.RawChain), nil
	}

	chain, err := c.source.FetchChain(ctx, ticker)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, chain, cache.DefaultExpiration)
	return chain, nil
}

// Flush drops every cached chain
func (c *CachedChainSource) Flush() {
	c.cache.Flush()
}
