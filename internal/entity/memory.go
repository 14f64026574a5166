package entity

import (
	"sort"
	"sync"
)

// MemoryRegistry is an in-process Registry. Mutations notify watchers
// synchronously after the lock is released.
type MemoryRegistry struct {
	mu           sync.RWMutex
	entities     map[string]RegistryEntity
	devices      map[string]RegistryDevice
	states       map[string]State
	entryDomains map[string]string
	watchers     map[int]RegistryWatcher
	nextID       int
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entities:     make(map[string]RegistryEntity),
		devices:      make(map[string]RegistryDevice),
		states:       make(map[string]State),
		entryDomains: make(map[string]string),
		watchers:     make(map[int]RegistryWatcher),
	}
}

func (m *MemoryRegistry) Entities() []RegistryEntity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RegistryEntity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (m *MemoryRegistry) Devices() []RegistryDevice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RegistryDevice, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryRegistry) States() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (m *MemoryRegistry) State(entityID string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[entityID]
	return s, ok
}

func (m *MemoryRegistry) ConfigEntryDomain(configEntryID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entryDomains[configEntryID]
}

func (m *MemoryRegistry) Watch(w RegistryWatcher) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Watchers returns the number of live watchers.
func (m *MemoryRegistry) Watchers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers)
}

// SetConfigEntryDomain records the integration domain of a config entry.
func (m *MemoryRegistry) SetConfigEntryDomain(configEntryID, domain string) {
	m.mu.Lock()
	m.entryDomains[configEntryID] = domain
	m.mu.Unlock()
}

// UpsertEntity adds or replaces an entity and emits an entity event.
func (m *MemoryRegistry) UpsertEntity(e RegistryEntity) {
	m.mu.Lock()
	_, exists := m.entities[e.EntityID]
	m.entities[e.EntityID] = e
	m.mu.Unlock()

	action := "create"
	if exists {
		action = "update"
	}
	m.emitEntity(EntityEvent{Action: action, EntityID: e.EntityID})
}

// RemoveEntity deletes an entity and emits an entity event.
func (m *MemoryRegistry) RemoveEntity(entityID string) {
	m.mu.Lock()
	delete(m.entities, entityID)
	m.mu.Unlock()
	m.emitEntity(EntityEvent{Action: "remove", EntityID: entityID})
}

// UpsertDevice adds or replaces a device and emits a device event.
func (m *MemoryRegistry) UpsertDevice(d RegistryDevice) {
	m.mu.Lock()
	_, exists := m.devices[d.ID]
	m.devices[d.ID] = d
	m.mu.Unlock()

	action := "create"
	if exists {
		action = "update"
	}
	m.emitDevice(DeviceEvent{Action: action, DeviceID: d.ID})
}

// SetState stores a live state without emitting a registry event.
func (m *MemoryRegistry) SetState(s State) {
	m.mu.Lock()
	m.states[s.EntityID] = s
	m.mu.Unlock()
}

func (m *MemoryRegistry) snapshotWatchers() []RegistryWatcher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int, 0, len(m.watchers))
	for id := range m.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]RegistryWatcher, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.watchers[id])
	}
	return out
}

func (m *MemoryRegistry) emitEntity(ev EntityEvent) {
	for _, w := range m.snapshotWatchers() {
		w.OnEntityUpdated(ev)
	}
}

func (m *MemoryRegistry) emitDevice(ev DeviceEvent) {
	for _, w := range m.snapshotWatchers() {
		w.OnDeviceUpdated(ev)
	}
}
