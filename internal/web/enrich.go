package web

import (
	"sort"

	"github.com/user/netmap/internal/entity"
	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/payloadcache"
)

// Node status values derived from device_tracker states.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusUnknown = "unknown"
)

// Enricher attaches external entity linkage to payloads, memoized by content hash.
type Enricher struct {
	cache    *payloadcache.Cache
	entities func() *entity.Cache
}

// NewEnricher creates an enricher. entities may return nil when no registry is configured.
func NewEnricher(cache *payloadcache.Cache, entities func() *entity.Cache) *Enricher {
	return &Enricher{cache: cache, entities: entities}
}

// Enrich returns the enriched form of p for the entry.
func (e *Enricher) Enrich(entryID string, p *model.Payload) *model.EnrichedPayload {
	hash := payloadcache.ComputeHash(p)
	if cached, ok := e.cache.Get(entryID, hash); ok {
		return cached
	}

	out := &model.EnrichedPayload{Payload: *p.Clone()}
	var ents *entity.Cache
	if e.entities != nil {
		ents = e.entities()
	}
	if ents != nil {
		link(out, ents)
	}
	e.cache.Set(entryID, out, hash)
	return out
}

func link(out *model.EnrichedPayload, ents *entity.Cache) {
	idx := ents.Index()
	reg := ents.Registry()
	primary := idx.Primary()

	out.ClientEntities = byName(out.ClientMACs, primary)
	out.DeviceEntities = byName(out.DeviceMACs, primary)

	out.NodeEntities = make(map[string]string, len(out.ClientEntities)+len(out.DeviceEntities))
	for name, id := range out.DeviceEntities {
		out.NodeEntities[name] = id
	}
	for name, id := range out.ClientEntities {
		out.NodeEntities[name] = id
	}

	out.NodeStatus = make(map[string]model.NodeStatus)
	for name, id := range out.NodeEntities {
		if entity.Domain(id) != "device_tracker" {
			continue
		}
		status := model.NodeStatus{EntityID: id, State: StatusUnknown}
		if st, ok := reg.State(id); ok {
			status.State = trackerStatus(st.State)
			if !st.LastChanged.IsZero() {
				lc := st.LastChanged
				status.LastChanged = &lc
			}
		}
		out.NodeStatus[name] = status
	}

	all := idx.All()
	out.RelatedEntities = make(map[string][]model.RelatedEntity)
	addRelated := func(macs map[string]string) {
		for name, mac := range macs {
			ids := all[mac]
			if len(ids) == 0 {
				continue
			}
			out.RelatedEntities[name] = related(reg, ids)
		}
	}
	addRelated(out.DeviceMACs)
	addRelated(out.ClientMACs)
}

func byName(macs map[string]string, primary map[string]string) map[string]string {
	out := make(map[string]string)
	for name, mac := range macs {
		if id, ok := primary[mac]; ok {
			out[name] = id
		}
	}
	return out
}

func trackerStatus(state string) string {
	switch state {
	case "home":
		return StatusOnline
	case "not_home":
		return StatusOffline
	default:
		return StatusUnknown
	}
}

func related(reg entity.Registry, ids []string) []model.RelatedEntity {
	out := make([]model.RelatedEntity, 0, len(ids))
	for _, id := range ids {
		r := model.RelatedEntity{EntityID: id, Domain: entity.Domain(id)}
		if st, ok := reg.State(id); ok {
			r.State = st.State
			if !st.LastChanged.IsZero() {
				lc := st.LastChanged
				r.LastChanged = &lc
			}
			r.IP = st.Attr("ip")
			if r.IP == "" {
				r.IP = st.Attr("ip_address")
			}
			r.FriendlyName = st.Attr("friendly_name")
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := entity.DomainPriority(out[i].Domain), entity.DomainPriority(out[j].Domain)
		if pi != pj {
			return pi < pj
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}
