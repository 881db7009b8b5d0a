package fee

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

var (
	quoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fee_quote_cache_hits_total",
		Help: "Total number of fee quote cache hits",
	})

	quoteCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fee_quote_cache_misses_total",
		Help: "Total number of fee quote cache misses",
	}, []string{"reason"}) // expired, not_found

	quoteCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fee_quote_cache_size",
		Help: "Current number of cached fee quotes",
	})
)

// quoteCache holds issued quotes until checkout redeems them or they age
// out. Quotes are small and short-lived; eviction is approximate oldest
// first, which is good enough for a bounded holding pen.
type quoteCache struct {
	entries sync.Map // map[string]*cachedQuote, keyed by quote id
	logger  *zap.Logger

	ttl     time.Duration
	maxSize int

	mu    sync.Mutex // guards size bookkeeping during eviction
	count int
}

type cachedQuote struct {
	quote     *domain.ServiceFeeQuote
	expiresAt time.Time
}

func newQuoteCache(ttl time.Duration, maxSize int, logger *zap.Logger) *quoteCache {
	return &quoteCache{
		ttl:     ttl,
		maxSize: maxSize,
		logger:  logger,
	}
}

func (c *quoteCache) put(quote *domain.ServiceFeeQuote) {
	c.mu.Lock()
	if c.count >= c.maxSize {
		c.evictOldest()
	}
	c.count++
	c.mu.Unlock()

	c.entries.Store(quote.ID, &cachedQuote{
		quote:     quote,
		expiresAt: time.Now().Add(c.ttl),
	})
	quoteCacheSize.Set(float64(c.size()))
}

func (c *quoteCache) get(quoteID string) (*domain.ServiceFeeQuote, bool) {
	v, ok := c.entries.Load(quoteID)
	if !ok {
		quoteCacheMisses.WithLabelValues("not_found").Inc()
		return nil, false
	}

	entry := v.(*cachedQuote)
	if time.Now().After(entry.expiresAt) {
		c.remove(quoteID)
		quoteCacheMisses.WithLabelValues("expired").Inc()
		return nil, false
	}

	quoteCacheHits.Inc()
	return entry.quote, true
}

func (c *quoteCache) remove(quoteID string) {
	if _, loaded := c.entries.LoadAndDelete(quoteID); loaded {
		c.mu.Lock()
		c.count--
		c.mu.Unlock()
		quoteCacheSize.Set(float64(c.size()))
	}
}

func (c *quoteCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// evictOldest drops the entry closest to expiry. Caller holds c.mu.
func (c *quoteCache) evictOldest() {
	var oldestID string
	var oldestAt time.Time

	c.entries.Range(func(key, value any) bool {
		entry := value.(*cachedQuote)
		if oldestID == "" || entry.expiresAt.Before(oldestAt) {
			oldestID = key.(string)
			oldestAt = entry.expiresAt
		}
		return true
	})

	if oldestID != "" {
		c.entries.Delete(oldestID)
		c.count--
		c.logger.Debug("evicted fee quote", zap.String("quote_id", oldestID))
	}
}
