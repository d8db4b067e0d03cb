// Package fleetcache keeps the current fleet snapshot in memory.
package fleetcache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"juridico/internal/domain"
)

// Loader reads the fleet from its backing store.
type Loader interface {
	AllVehicles(ctx context.Context) ([]domain.FleetVehicle, error)
}

// Cache serves a snapshot that is reloaded after ttl or once invalidated.
// Concurrent reloads collapse into one and the snapshot is swapped whole.
// An empty fleet is a valid snapshot.
type Cache struct {
	loader Loader
	clock  clockwork.Clock
	ttl    time.Duration
	log    logrus.FieldLogger

	snap  atomic.Pointer[domain.FleetSnapshot]
	group singleflight.Group

	// mu orders generation bumps against snapshot stores, so a reload that
	// started before Invalidate never publishes its result.
	mu  sync.Mutex
	gen uint64
}

func New(loader Loader, clock clockwork.Clock, ttl time.Duration, log logrus.FieldLogger) *Cache {
	if ttl <= 0 {
		ttl = domain.DefaultFleetRefresh
	}
	return &Cache{loader: loader, clock: clock, ttl: ttl, log: log.WithField("component", "fleetcache")}
}

// GetSnapshot returns the cached snapshot, reloading it when stale. If a
// reload fails and an older snapshot exists, the older one is served.
func (c *Cache) GetSnapshot(ctx context.Context) (*domain.FleetSnapshot, error) {
	cur := c.snap.Load()
	if cur != nil && c.clock.Since(cur.LoadedAt) < c.ttl {
		return cur, nil
	}
	gen := c.generation()
	v, err, _ := c.group.Do("fleet:"+strconv.FormatUint(gen, 10), func() (any, error) {
		return c.reload(ctx, gen)
	})
	if err != nil {
		if cur != nil {
			c.log.WithError(err).Warn("fleet reload failed, serving previous snapshot")
			return cur, nil
		}
		return nil, err
	}
	return v.(*domain.FleetSnapshot), nil
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Cache) reload(ctx context.Context, gen uint64) (*domain.FleetSnapshot, error) {
	vehicles, err := c.loader.AllVehicles(ctx)
	if err != nil {
		return nil, err
	}
	snap := &domain.FleetSnapshot{
		Vehicles: make(map[string]domain.FleetVehicle, len(vehicles)),
		LoadedAt: c.clock.Now(),
	}
	for _, v := range vehicles {
		snap.Vehicles[v.Prefixo] = v
	}
	c.mu.Lock()
	current := c.gen == gen
	if current {
		c.snap.Store(snap)
	}
	c.mu.Unlock()
	if !current {
		c.log.Debug("fleet invalidated during reload, snapshot not cached")
		return snap, nil
	}
	c.log.WithField("vehicles", len(vehicles)).Debug("fleet snapshot loaded")
	return snap, nil
}

// Invalidate drops the snapshot and any reload already in flight; the next
// GetSnapshot reads the store again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.snap.Store(nil)
}
