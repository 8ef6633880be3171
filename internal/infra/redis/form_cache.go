package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"form-builder-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// FormLoader fetches form definitions from the backing store.
type FormLoader interface {
	GetForm(ctx context.Context, formID string) (domain.Form, error)
}

// genTTL bounds how long an invalidation counter outlives its last bump.
const genTTL = 24 * time.Hour

var errStaleLoad = errors.New("form invalidated during load")

// FormCache caches whole form definitions in Redis as JSON and falls back to a
// loader on cache miss. Entries live under form:{formID}; form:gen:{formID}
// counts invalidations so a load that raced one is not written back.
type FormCache struct {
	client *redis.Client
	loader FormLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewFormCache(client *redis.Client, loader FormLoader, ttl time.Duration) *FormCache {
	return &FormCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *FormCache) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	if form, ok := c.lookup(ctx, formID); ok {
		return form, nil
	}

	result, err, _ := c.sf.Do(formID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if form, ok := c.lookup(ctx, formID); ok {
			return form, nil
		}

		gen, genErr := c.generation(ctx, c.client, formID)
		form, err := c.loader.GetForm(ctx, formID)
		if err != nil {
			return domain.Form{}, err
		}

		if genErr == nil {
			// best effort: a skipped write only costs another load
			_ = c.store(ctx, formID, gen, form)
		}
		return form, nil
	})
	if err != nil {
		return domain.Form{}, err
	}
	return result.(domain.Form), nil
}

// Invalidate deletes the cached entry and bumps the form's generation.
func (c *FormCache) Invalidate(ctx context.Context, formID string) error {
	c.sf.Forget(formID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(formID))
		pipe.Expire(ctx, c.genKey(formID), genTTL)
		pipe.Del(ctx, c.key(formID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate form %s: %w", formID, err)
	}
	return nil
}

// store writes form only if no invalidation happened since gen was read.
func (c *FormCache) store(ctx context.Context, formID string, gen int64, form domain.Form) error {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(form)
	if err != nil {
		return err
	}
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.generation(ctx, tx, formID)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(formID), payload, ttl)
			return nil
		})
		return err
	}, c.genKey(formID))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *FormCache) generation(ctx context.Context, cmd getter, formID string) (int64, error) {
	gen, err := cmd.Get(ctx, c.genKey(formID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *FormCache) lookup(ctx context.Context, formID string) (domain.Form, bool) {
	payload, err := c.client.Get(ctx, c.key(formID)).Bytes()
	if err != nil {
		return domain.Form{}, false
	}
	var form domain.Form
	if err := json.Unmarshal(payload, &form); err != nil {
		return domain.Form{}, false
	}
	return form, true
}

func (c *FormCache) key(formID string) string {
	return "form:" + formID
}

func (c *FormCache) genKey(formID string) string {
	return "form:gen:" + formID
}

func (c *FormCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
