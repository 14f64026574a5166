package payloadcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/model"
)

func samplePayload() *model.Payload {
	p := model.NewPayload()
	p.Edges = []model.Edge{{Left: "G", Right: "S"}}
	p.NodeTypes = map[string]model.NodeType{"G": model.NodeGateway, "S": model.NodeSwitch}
	p.DeviceMACs = map[string]string{"G": "11:00:00:00:00:01", "S": "11:00:00:00:00:02"}
	p.Gateways = []string{"G"}
	return p
}

func TestComputeHash(t *testing.T) {
	assert.Empty(t, ComputeHash(nil))

	a := samplePayload()
	h := ComputeHash(a)
	assert.Len(t, h, 64)

	// map insertion order does not matter
	b := samplePayload()
	b.NodeTypes = map[string]model.NodeType{}
	b.NodeTypes["S"] = model.NodeSwitch
	b.NodeTypes["G"] = model.NodeGateway
	assert.Equal(t, h, ComputeHash(b))

	tests := map[string]struct {
		mutate  func(p *model.Payload)
		changes bool
	}{
		"gateways ignored":       {mutate: func(p *model.Payload) { p.Gateways = nil }, changes: false},
		"vlan info ignored":      {mutate: func(p *model.Payload) { p.VLANInfo[5] = model.VLANInfo{ID: 5} }, changes: false},
		"client details ignored": {mutate: func(p *model.Payload) { p.ClientDetails["x"] = model.ClientDetail{MAC: "x"} }, changes: false},
		"edges":                  {mutate: func(p *model.Payload) { p.Edges = append(p.Edges, model.Edge{Left: "S", Right: "AP"}) }, changes: true},
		"ap counts":              {mutate: func(p *model.Payload) { p.APClientCounts["AP"] = 3 }, changes: true},
		"client ips":             {mutate: func(p *model.Payload) { p.ClientIPs["c"] = "10.0.0.9" }, changes: true},
		"schema":                 {mutate: func(p *model.Payload) { p.SchemaVersion = "2.0" }, changes: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := samplePayload()
			test.mutate(p)
			if test.changes {
				assert.NotEqual(t, h, ComputeHash(p))
			} else {
				assert.Equal(t, h, ComputeHash(p))
			}
		})
	}
}

func TestCache_GetSet(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New().WithClock(func() time.Time { return now })

	p := samplePayload()
	h := ComputeHash(p)
	enriched := &model.EnrichedPayload{Payload: *p}

	_, ok := c.Get("e1", h)
	assert.False(t, ok)

	c.Set("e1", enriched, h)
	got, ok := c.Get("e1", h)
	require.True(t, ok)
	assert.Same(t, enriched, got)

	_, ok = c.Get("e2", h)
	assert.False(t, ok, "other entry")

	p.Edges = append(p.Edges, model.Edge{Left: "S", Right: "AP"})
	_, ok = c.Get("e1", ComputeHash(p))
	assert.False(t, ok, "content changed")

	now = now.Add(DefaultTTL)
	_, ok = c.Get("e1", h)
	assert.True(t, ok, "age equal to ttl is a hit")

	now = now.Add(time.Second)
	_, ok = c.Get("e1", h)
	assert.False(t, ok, "expired")
}

func TestCache_Invalidate(t *testing.T) {
	c := New()
	e := &model.EnrichedPayload{}
	c.Set("a", e, "h")
	c.Set("b", e, "h")

	c.Invalidate("a")
	_, ok := c.Get("a", "h")
	assert.False(t, ok)
	_, ok = c.Get("b", "h")
	assert.True(t, ok)

	c.InvalidateAll()
	_, ok = c.Get("b", "h")
	assert.False(t, ok)
}

func TestCache_SetTTL(t *testing.T) {
	now := time.Unix(0, 0)
	c := New().WithClock(func() time.Time { return now })

	c.SetTTL(-5)
	assert.Zero(t, c.TTL())

	c.Set("a", &model.EnrichedPayload{}, "h")
	_, ok := c.Get("a", "h")
	assert.True(t, ok, "zero age with zero ttl")
	now = now.Add(time.Millisecond)
	_, ok = c.Get("a", "h")
	assert.False(t, ok)

	c.SetTTL(60)
	assert.Equal(t, time.Minute, c.TTL())
}
