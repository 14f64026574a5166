// Package entity maps MAC addresses to external entities.
package entity

import (
	"strings"
	"time"
)

// UniFiDomain is the integration domain whose entities describe UniFi clients and devices.
const UniFiDomain = "unifi"

// RegistryEntity is one entry of the external entity registry.
type RegistryEntity struct {
	EntityID      string `json:"entity_id" mapstructure:"entity_id"`
	UniqueID      string `json:"unique_id" mapstructure:"unique_id"`
	Platform      string `json:"platform" mapstructure:"platform"`
	ConfigEntryID string `json:"config_entry_id" mapstructure:"config_entry_id"`
	DeviceID      string `json:"device_id" mapstructure:"device_id"`
	DisabledBy    string `json:"disabled_by" mapstructure:"disabled_by"`
}

// Enabled reports whether the entity is not disabled.
func (e RegistryEntity) Enabled() bool {
	return e.DisabledBy == ""
}

// Domain returns the entity ID prefix.
func (e RegistryEntity) Domain() string {
	return Domain(e.EntityID)
}

// RegistryDevice is one entry of the external device registry.
// Identifiers and connections are (domain or type, value) pairs.
type RegistryDevice struct {
	ID            string      `json:"id" mapstructure:"id"`
	Identifiers   [][2]string `json:"identifiers" mapstructure:"identifiers"`
	Connections   [][2]string `json:"connections" mapstructure:"connections"`
	ConfigEntries []string    `json:"config_entries" mapstructure:"config_entries"`
}

// State is the live state of an entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
}

// Attr returns a string attribute, or "".
func (s State) Attr(key string) string {
	if v, ok := s.Attributes[key].(string); ok {
		return v
	}
	return ""
}

// EntityEvent is an entity registry change.
type EntityEvent struct {
	Action   string `json:"action" mapstructure:"action"`
	EntityID string `json:"entity_id" mapstructure:"entity_id"`
}

// DeviceEvent is a device registry change.
type DeviceEvent struct {
	Action   string `json:"action" mapstructure:"action"`
	DeviceID string `json:"device_id" mapstructure:"device_id"`
}

// RegistryWatcher receives registry changes.
type RegistryWatcher interface {
	OnEntityUpdated(EntityEvent)
	OnDeviceUpdated(DeviceEvent)
	Unsubscribe()
}

// Registry is the external entity and device registry plus live states.
type Registry interface {
	Entities() []RegistryEntity
	Devices() []RegistryDevice
	States() []State
	State(entityID string) (State, bool)
	// ConfigEntryDomain returns the integration domain of a config entry, or "".
	ConfigEntryDomain(configEntryID string) string
	// Watch delivers registry events to w until the returned cancel is called.
	Watch(w RegistryWatcher) (cancel func())
}

// Domain returns the part of an entity ID before the first dot.
func Domain(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i > 0 {
		return entityID[:i]
	}
	return entityID
}

var domainPriority = map[string]int{
	"device_tracker": 0,
	"sensor":         1,
	"binary_sensor":  2,
	"switch":         3,
	"button":         4,
	"update":         5,
	"image":          6,
}

// DomainPriority orders entity domains for display; unknown domains sort last.
func DomainPriority(domain string) int {
	if p, ok := domainPriority[domain]; ok {
		return p
	}
	return 99
}
