package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"form-builder-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// FormLoader fetches form definitions from the backing store.
type FormLoader interface {
	GetForm(ctx context.Context, formID string) (domain.Form, error)
}

// FormCache caches form definitions with TTL to avoid repeated DB hits while
// grading submissions.
type FormCache struct {
	loader FormLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedForm
	// gens is bumped on every invalidation; a load started under an older
	// generation is returned to its callers but never stored.
	gens map[string]uint64
}

type cachedForm struct {
	form      domain.Form
	expiresAt time.Time
}

func NewFormCache(loader FormLoader, ttl time.Duration) *FormCache {
	return &FormCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedForm),
		gens:   make(map[string]uint64),
	}
}

func (c *FormCache) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	if form, ok := c.lookup(formID); ok {
		return form, nil
	}

	result, err, _ := c.sf.Do(formID, func() (interface{}, error) {
		if form, ok := c.lookup(formID); ok {
			return form, nil
		}

		gen := c.generation(formID)
		form, err := c.loader.GetForm(ctx, formID)
		if err != nil {
			return domain.Form{}, err
		}

		ttl := c.ttlWithJitter()
		if ttl > 0 {
			c.mu.Lock()
			if c.gens[formID] == gen {
				c.cache[formID] = cachedForm{form: form, expiresAt: c.clock().Add(ttl)}
			}
			c.mu.Unlock()
		}
		return form, nil
	})
	if err != nil {
		return domain.Form{}, err
	}
	return cloneForm(result.(domain.Form)), nil
}

// Invalidate drops the cached copy so the next read hits the loader.
func (c *FormCache) Invalidate(_ context.Context, formID string) error {
	c.sf.Forget(formID)
	c.mu.Lock()
	c.gens[formID]++
	delete(c.cache, formID)
	c.mu.Unlock()
	return nil
}

func (c *FormCache) generation(formID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[formID]
}

func (c *FormCache) lookup(formID string) (domain.Form, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[formID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Form{}, false
	}
	return cloneForm(entry.form), true
}

func (c *FormCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
