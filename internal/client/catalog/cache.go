// Package catalog is the client-side mirror of the product collection. The
// mirror is a snapshot replaced as a whole on every sync and filtered at
// read time.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/models"
)

// Bus topics.
const (
	// TopicInvalidated is published with no arguments.
	TopicInvalidated = "catalog:invalidated"
	// TopicSynced is published with the new *Snapshot.
	TopicSynced = "catalog:synced"
)

// Snapshot is an immutable copy of the product collection.
type Snapshot struct {
	Products []models.Product
	SyncedAt time.Time
	Version  uint64

	gen uint64
}

// Cache holds the current snapshot. Reads never mutate it; a sync swaps the
// whole snapshot pointer.
type Cache struct {
	backend backend.Backend
	bus     EventBus.Bus
	log     *zap.Logger
	now     func() time.Time

	snap    atomic.Pointer[Snapshot]
	gen     atomic.Uint64
	synced  atomic.Uint64
	version atomic.Uint64
	group   singleflight.Group
}

// New returns an empty cache that syncs on first read. bus may be nil.
func New(b backend.Backend, bus EventBus.Bus, log *zap.Logger) *Cache {
	if bus == nil {
		bus = EventBus.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{backend: b, bus: bus, log: log, now: time.Now}
	c.gen.Store(1)
	return c
}

// Bus returns the event bus the cache publishes on.
func (c *Cache) Bus() EventBus.Bus { return c.bus }

// Snapshot returns the current snapshot without syncing, or nil before the
// first successful sync.
func (c *Cache) Snapshot() *Snapshot { return c.snap.Load() }

// Invalidate forces the next read to re-sync.
func (c *Cache) Invalidate() {
	c.gen.Add(1)
	c.bus.Publish(TopicInvalidated)
}

func (c *Cache) stale() bool {
	return c.snap.Load() == nil || c.synced.Load() != c.gen.Load()
}

// Sync fetches the full collection and replaces the snapshot. Concurrent
// calls share one fetch. On failure the previous snapshot stays in place.
func (c *Cache) Sync(ctx context.Context) (*Snapshot, error) {
	// Calls join a fetch only if it started after the latest invalidation.
	gen := c.gen.Load()
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		recs, err := c.backend.Table(backend.TableProducts).Query(ctx, backend.Query{})
		if err != nil {
			return nil, err
		}
		products := make([]models.Product, 0, len(recs))
		for _, rec := range recs {
			p, err := models.ProductFromRecord(rec)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindBackend, "Respuesta inválida del servidor", fmt.Errorf("decode product: %w", err))
			}
			products = append(products, p)
		}
		snap := &Snapshot{Products: products, SyncedAt: c.now(), gen: gen}
		if !c.install(snap) {
			c.log.Debug("dropping sync result older than the current snapshot", zap.Uint64("gen", gen))
			return c.snap.Load(), nil
		}
		c.bus.Publish(TopicSynced, snap)
		return snap, nil
	})
	if err != nil {
		c.log.Warn("catalog sync failed, keeping previous snapshot", zap.Error(err))
		return c.snap.Load(), err
	}
	return v.(*Snapshot), nil
}

// install stores snap unless a fetch started after a later invalidation has
// already landed.
func (c *Cache) install(snap *Snapshot) bool {
	for {
		cur := c.snap.Load()
		if cur != nil && cur.gen > snap.gen {
			return false
		}
		snap.Version = c.version.Add(1)
		if c.snap.CompareAndSwap(cur, snap) {
			break
		}
	}
	for {
		s := c.synced.Load()
		if s >= snap.gen || c.synced.CompareAndSwap(s, snap.gen) {
			return true
		}
	}
}

func (c *Cache) current(ctx context.Context) (*Snapshot, error) {
	if !c.stale() {
		return c.snap.Load(), nil
	}
	return c.Sync(ctx)
}

// List returns the products matching f. When a needed sync fails, the
// previous snapshot is still filtered and returned alongside the error.
func (c *Cache) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	snap, err := c.current(ctx)
	if snap == nil {
		return []models.Product{}, err
	}
	return f.Apply(snap.Products), err
}

// Get returns the product with the given id from the snapshot.
func (c *Cache) Get(ctx context.Context, id string) (models.Product, error) {
	snap, err := c.current(ctx)
	if snap != nil {
		for _, p := range snap.Products {
			if p.ID == id {
				return p, err
			}
		}
	}
	if err != nil {
		return models.Product{}, err
	}
	return models.Product{}, apperr.NotFound("Producto no encontrado")
}

// Categories returns the backend's category names, or the default set when
// the backend has none or cannot be reached.
func (c *Cache) Categories(ctx context.Context) []string {
	recs, err := c.backend.Table(backend.TableCategories).Query(ctx, backend.Query{})
	if err != nil {
		c.log.Warn("using default categories", zap.Error(err))
		return append([]string(nil), models.DefaultCategories...)
	}
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		if name, ok := r[models.FieldName].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return append([]string(nil), models.DefaultCategories...)
	}
	return names
}
