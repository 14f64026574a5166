package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	macA = "aa:bb:cc:00:00:01"
	macB = "aa:bb:cc:00:00:02"
	macC = "aa:bb:cc:00:00:03"
	macD = "aa:bb:cc:00:00:04"
)

func seededRegistry() *MemoryRegistry {
	m := NewMemoryRegistry()
	m.SetConfigEntryDomain("ce-unifi", UniFiDomain)
	m.SetConfigEntryDomain("ce-other", "hue")

	// identifiers and connections
	m.UpsertDevice(RegistryDevice{ID: "dev-ap", Identifiers: [][2]string{{"unifi", "AA:BB:CC:00:00:02"}}})
	m.UpsertDevice(RegistryDevice{ID: "dev-conn", Connections: [][2]string{{"mac", "aabbcc000003"}}, ConfigEntries: []string{"ce-unifi"}})
	m.UpsertDevice(RegistryDevice{ID: "dev-hue", Identifiers: [][2]string{{"hue", "aabbcc000004"}}, ConfigEntries: []string{"ce-other"}})

	m.UpsertEntity(RegistryEntity{EntityID: "sensor.laptop_rx", UniqueID: "rx-AA:BB:CC:00:00:01", Platform: "unifi"})
	m.UpsertEntity(RegistryEntity{EntityID: "device_tracker.laptop", UniqueID: "aa:bb:cc:00:00:01", Platform: "unifi"})
	m.UpsertEntity(RegistryEntity{EntityID: "switch.ap_led", UniqueID: "led", ConfigEntryID: "ce-unifi", DeviceID: "dev-ap"})
	m.UpsertEntity(RegistryEntity{EntityID: "sensor.ap_uptime", UniqueID: "uptime", Platform: "unifi", DeviceID: "dev-ap"})
	m.UpsertEntity(RegistryEntity{EntityID: "update.ap", UniqueID: "fw", Platform: "unifi", DeviceID: "dev-ap", DisabledBy: "user"})
	m.UpsertEntity(RegistryEntity{EntityID: "button.switch_restart", UniqueID: "x", Platform: "unifi", DeviceID: "dev-conn"})
	m.UpsertEntity(RegistryEntity{EntityID: "light.hue", UniqueID: "aabbcc000004", Platform: "hue", DeviceID: "dev-hue"})

	m.SetState(State{EntityID: "device_tracker.phone", State: "home", Attributes: map[string]any{"mac": "AA-BB-CC-00-00-01"}})
	m.SetState(State{EntityID: "device_tracker.tv", State: "not_home", Attributes: map[string]any{"mac_address": "aabbcc000004", "source_type": "router"}})
	m.SetState(State{EntityID: "sensor.no_mac", State: "1"})
	return m
}

func TestPrimary(t *testing.T) {
	c := NewCache(seededRegistry())
	primary := c.Primary()

	tests := map[string]struct {
		mac  string
		want string
	}{
		"tracker preferred over sensor": {mac: macA, want: "device_tracker.laptop"},
		"device identifier":             {mac: macB, want: "sensor.ap_uptime"},
		"device connection":             {mac: macC, want: "button.switch_restart"},
		"state attribute for non unifi": {mac: macD, want: "device_tracker.tv"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, primary[test.mac])
		})
	}
}

func TestAll(t *testing.T) {
	c := NewCache(seededRegistry())
	all := c.All()

	assert.Equal(t, []string{"device_tracker.laptop", "device_tracker.phone", "sensor.laptop_rx"}, all[macA])
	assert.Equal(t, []string{"sensor.ap_uptime", "switch.ap_led"}, all[macB], "disabled update entity excluded")
	assert.Equal(t, []string{"button.switch_restart"}, all[macC])
	assert.Equal(t, []string{"device_tracker.tv"}, all[macD], "non unifi device identifiers ignored")
}

func TestCache_Invalidation(t *testing.T) {
	reg := seededRegistry()
	c := NewCache(reg)

	tests := map[string]struct {
		mutate     func()
		invalidate bool
	}{
		"unifi entity added": {
			mutate:     func() { reg.UpsertEntity(RegistryEntity{EntityID: "sensor.new", Platform: "unifi"}) },
			invalidate: true,
		},
		"foreign entity updated": {
			mutate:     func() { reg.UpsertEntity(RegistryEntity{EntityID: "light.hue", Platform: "hue"}) },
			invalidate: false,
		},
		"removed entity is unknown": {
			mutate:     func() { reg.RemoveEntity("light.hue") },
			invalidate: true,
		},
		"unifi device updated": {
			mutate:     func() { reg.UpsertDevice(RegistryDevice{ID: "dev-ap", Identifiers: [][2]string{{"unifi", macB}}}) },
			invalidate: true,
		},
		"foreign device updated": {
			mutate:     func() { reg.UpsertDevice(RegistryDevice{ID: "dev-hue", ConfigEntries: []string{"ce-other"}}) },
			invalidate: false,
		},
		"unknown device event": {
			mutate:     func() { c.OnDeviceUpdated(DeviceEvent{Action: "remove", DeviceID: "gone"}) },
			invalidate: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			before := c.Index()
			test.mutate()
			after := c.Index()
			if test.invalidate {
				assert.NotSame(t, before, after)
			} else {
				assert.Same(t, before, after)
			}
		})
	}
}

func TestCache_ReadersKeepSnapshot(t *testing.T) {
	reg := seededRegistry()
	c := NewCache(reg)

	idx := c.Index()
	primary := idx.Primary()
	reg.UpsertEntity(RegistryEntity{EntityID: "device_tracker.new", UniqueID: macC, Platform: "unifi"})

	assert.Equal(t, "button.switch_restart", primary[macC])
	assert.Equal(t, "button.switch_restart", idx.Primary()[macC])
	assert.Equal(t, "device_tracker.new", c.Primary()[macC])
}

func TestCache_Unsubscribe(t *testing.T) {
	reg := NewMemoryRegistry()
	c := NewCache(reg)
	require.Equal(t, 1, reg.Watchers())

	c.Unsubscribe()
	c.Unsubscribe()
	assert.Zero(t, reg.Watchers())

	before := c.Index()
	reg.UpsertEntity(RegistryEntity{EntityID: "sensor.x", Platform: "unifi"})
	assert.Same(t, before, c.Index())
}

func TestDomainPriority(t *testing.T) {
	assert.Less(t, DomainPriority("device_tracker"), DomainPriority("sensor"))
	assert.Less(t, DomainPriority("update"), DomainPriority("image"))
	assert.Equal(t, 99, DomainPriority("light"))
	assert.Equal(t, "sensor", Domain("sensor.x"))
}
