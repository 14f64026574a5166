package entity

import (
	"sync"

	"github.com/user/netmap/internal/util"
)

// Index is one build of the MAC lookups. Both views are computed on first
// use and dropped together on invalidation.
type Index struct {
	reg Registry

	primaryOnce sync.Once
	primary     map[string]string
	allOnce     sync.Once
	all         map[string][]string
}

// Primary returns mac -> primary entity ID.
func (i *Index) Primary() map[string]string {
	i.primaryOnce.Do(func() { i.primary = buildPrimary(i.reg) })
	return i.primary
}

// All returns mac -> every associated entity ID.
func (i *Index) All() map[string][]string {
	i.allOnce.Do(func() { i.all = buildAll(i.reg) })
	return i.all
}

// Cache holds the shared Index and invalidates it on relevant registry events.
// It implements RegistryWatcher.
type Cache struct {
	reg Registry

	mu     sync.Mutex
	index  *Index
	cancel func()
	once   sync.Once
}

// NewCache creates a cache and subscribes it to the registry.
func NewCache(reg Registry) *Cache {
	c := &Cache{reg: reg}
	c.cancel = reg.Watch(c)
	return c
}

// Index returns the current index, building a new one after invalidation.
// Callers keep the returned reference for the duration of a read.
func (c *Cache) Index() *Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		c.index = &Index{reg: c.reg}
	}
	return c.index
}

// Primary is shorthand for Index().Primary().
func (c *Cache) Primary() map[string]string {
	return c.Index().Primary()
}

// All is shorthand for Index().All().
func (c *Cache) All() map[string][]string {
	return c.Index().All()
}

// Invalidate drops both views.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.index = nil
	c.mu.Unlock()
}

// Registry returns the registry the cache reads.
func (c *Cache) Registry() Registry {
	return c.reg
}

// OnEntityUpdated invalidates when the entity is UniFi related or unknown.
func (c *Cache) OnEntityUpdated(ev EntityEvent) {
	r := newResolver(c.reg)
	for _, e := range c.reg.Entities() {
		if e.EntityID == ev.EntityID {
			if !r.entityIsUniFi(e) {
				return
			}
			break
		}
	}
	util.Debug("Entity registry %s for %s, invalidating MAC index", ev.Action, ev.EntityID)
	c.Invalidate()
}

// OnDeviceUpdated invalidates when the device is UniFi related or unknown.
func (c *Cache) OnDeviceUpdated(ev DeviceEvent) {
	r := newResolver(c.reg)
	if known, ok := r.unifiDevs[ev.DeviceID]; ok && !known {
		return
	}
	util.Debug("Device registry %s for %s, invalidating MAC index", ev.Action, ev.DeviceID)
	c.Invalidate()
}

// Unsubscribe stops registry event delivery. Safe to call more than once.
func (c *Cache) Unsubscribe() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
	})
}
