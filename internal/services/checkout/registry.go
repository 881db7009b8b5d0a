package checkout

import (
	"sync"
	"time"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// maxCheckouts bounds the registry. One coordinator per (customer, entity)
// pair would otherwise accumulate forever.
const maxCheckouts = 10000

// registry hands out one Coordinator per checkout. The key is the customer
// plus the entity being paid: the same resident paying two different permits
// gets independent guards, two widgets paying the same permit share one.
type registry struct {
	cooldown time.Duration
	maxSize  int
	clock    func() time.Time

	mu     sync.Mutex
	coords map[string]*checkoutEntry
}

type checkoutEntry struct {
	coord    *Coordinator
	lastUsed time.Time
}

func newRegistry(cooldown time.Duration) *registry {
	return &registry{
		cooldown: cooldown,
		maxSize:  maxCheckouts,
		clock:    time.Now,
		coords:   make(map[string]*checkoutEntry),
	}
}

func (r *registry) forCheckout(customerID string, entity domain.EntityRef) *Coordinator {
	key := customerID + "|" + string(entity.Type) + "|" + entity.ID
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.coords[key]; ok {
		entry.lastUsed = now
		return entry.coord
	}

	if len(r.coords) >= r.maxSize {
		r.evict(now)
	}

	coord := NewCoordinator(r.cooldown)
	r.coords[key] = &checkoutEntry{coord: coord, lastUsed: now}
	return coord
}

// evict makes room for one more checkout. Idle coordinators hold no state a
// future attempt depends on and go first; if none are idle, the least
// recently used coordinator without an in-flight submission is dropped,
// which sacrifices its retained session id to keep the map bounded. Caller
// holds r.mu.
func (r *registry) evict(now time.Time) {
	for key, entry := range r.coords {
		if entry.coord.idle(now) {
			delete(r.coords, key)
		}
	}
	if len(r.coords) < r.maxSize {
		return
	}

	var oldestKey string
	var oldestAt time.Time
	for key, entry := range r.coords {
		if entry.coord.busy() {
			continue
		}
		if oldestKey == "" || entry.lastUsed.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.lastUsed
		}
	}
	if oldestKey != "" {
		delete(r.coords, oldestKey)
	}
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.coords)
}
