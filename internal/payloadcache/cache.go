// Package payloadcache memoizes enriched payloads per entry, keyed by a
// content hash of the source payload.
package payloadcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/user/netmap/internal/model"
)

// DefaultTTL is the lifetime of a cached enriched payload.
const DefaultTTL = 30 * time.Second

type cached struct {
	payload    *model.EnrichedPayload
	cachedAt   time.Time
	sourceHash string
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cached
}

// New returns an empty cache with the default TTL.
func New() *Cache {
	return &Cache{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]cached),
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get returns the cached payload when the hash matches and the entry is
// no older than the TTL.
func (c *Cache) Get(entryID, sourceHash string) (*model.EnrichedPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[entryID]
	if !ok || e.sourceHash != sourceHash {
		return nil, false
	}
	if c.now().Sub(e.cachedAt) > c.ttl {
		return nil, false
	}
	return e.payload, true
}

// Set stores the enriched payload for the entry, replacing any previous one.
func (c *Cache) Set(entryID string, payload *model.EnrichedPayload, sourceHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entryID] = cached{payload: payload, cachedAt: c.now(), sourceHash: sourceHash}
}

// Invalidate drops the entry.
func (c *Cache) Invalidate(entryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, entryID)
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cached)
}

// SetTTL sets the TTL in seconds; negative values become zero.
func (c *Cache) SetTTL(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = time.Duration(seconds) * time.Second
}

// TTL returns the current TTL.
func (c *Cache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// hashInput is the subset of the payload that determines enrichment.
// Fields are declared in key order and maps encode with sorted keys.
type hashInput struct {
	APClientCounts map[string]int            `json:"ap_client_counts"`
	ClientIPs      map[string]string         `json:"client_ips"`
	ClientMACs     map[string]string         `json:"client_macs"`
	DeviceIPs      map[string]string         `json:"device_ips"`
	DeviceMACs     map[string]string         `json:"device_macs"`
	Edges          []model.Edge              `json:"edges"`
	NodeTypes      map[string]model.NodeType `json:"node_types"`
	NodeVLANs      map[string]*int           `json:"node_vlans"`
	SchemaVersion  string                    `json:"schema_version"`
}

// ComputeHash returns the SHA-256 of the canonical JSON of the hashed
// subset, or "" for a nil payload.
func ComputeHash(p *model.Payload) string {
	if p == nil {
		return ""
	}
	in := hashInput{
		APClientCounts: p.APClientCounts,
		ClientIPs:      p.ClientIPs,
		ClientMACs:     p.ClientMACs,
		DeviceIPs:      p.DeviceIPs,
		DeviceMACs:     p.DeviceMACs,
		Edges:          p.Edges,
		NodeTypes:      p.NodeTypes,
		NodeVLANs:      p.NodeVLANs,
		SchemaVersion:  p.SchemaVersion,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(in); err != nil {
		return ""
	}
	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:])
}
