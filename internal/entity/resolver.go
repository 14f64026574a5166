package entity

import (
	"sort"

	"github.com/user/netmap/internal/model"
)

// resolver reads one snapshot of the registry.
type resolver struct {
	reg       Registry
	devices   map[string]RegistryDevice
	unifiDevs map[string]bool
}

func newResolver(reg Registry) *resolver {
	r := &resolver{
		reg:       reg,
		devices:   make(map[string]RegistryDevice),
		unifiDevs: make(map[string]bool),
	}
	for _, d := range reg.Devices() {
		r.devices[d.ID] = d
		r.unifiDevs[d.ID] = r.deviceIsUniFi(d)
	}
	return r
}

func (r *resolver) deviceIsUniFi(d RegistryDevice) bool {
	for _, id := range d.Identifiers {
		if id[0] == UniFiDomain {
			return true
		}
	}
	for _, ce := range d.ConfigEntries {
		if r.reg.ConfigEntryDomain(ce) == UniFiDomain {
			return true
		}
	}
	return false
}

func (r *resolver) entityIsUniFi(e RegistryEntity) bool {
	return e.Platform == UniFiDomain ||
		(e.ConfigEntryID != "" && r.reg.ConfigEntryDomain(e.ConfigEntryID) == UniFiDomain)
}

// entityMAC resolves an entity's MAC from its unique ID, then its device's
// UniFi identifiers, then its device's MAC connections.
func (r *resolver) entityMAC(e RegistryEntity) string {
	if mac := model.NormalizeMAC(e.UniqueID); mac != "" {
		return mac
	}
	d, ok := r.devices[e.DeviceID]
	if !ok {
		return ""
	}
	return deviceMAC(d)
}

func deviceMAC(d RegistryDevice) string {
	for _, id := range d.Identifiers {
		if id[0] != UniFiDomain {
			continue
		}
		if mac := model.NormalizeMAC(id[1]); mac != "" {
			return mac
		}
	}
	for _, c := range d.Connections {
		if c[0] != "mac" && c[0] != "network_mac" {
			continue
		}
		if mac := model.NormalizeMAC(c[1]); mac != "" {
			return mac
		}
	}
	return ""
}

// uniFiEntities returns the UniFi entities, device trackers first.
func (r *resolver) uniFiEntities() []RegistryEntity {
	var out []RegistryEntity
	for _, e := range r.reg.Entities() {
		if r.entityIsUniFi(e) {
			out = append(out, e)
		}
	}
	sortEntities(out)
	return out
}

// stateMACs returns (entityID, MAC) pairs claimed by live states. Trackers,
// router sourced states and anything else only count with a MAC attribute.
func (r *resolver) stateMACs() [][2]string {
	states := append([]State(nil), r.reg.States()...)
	sort.SliceStable(states, func(i, j int) bool {
		pi, pj := DomainPriority(Domain(states[i].EntityID)), DomainPriority(Domain(states[j].EntityID))
		if pi != pj {
			return pi < pj
		}
		return states[i].EntityID < states[j].EntityID
	})

	var out [][2]string
	for _, s := range states {
		mac := model.NormalizeMAC(s.Attr("mac"))
		if mac == "" {
			mac = model.NormalizeMAC(s.Attr("mac_address"))
		}
		if mac == "" {
			continue
		}
		out = append(out, [2]string{s.EntityID, mac})
	}
	return out
}

// buildPrimary maps each MAC to the first entity that claims it.
func buildPrimary(reg Registry) map[string]string {
	r := newResolver(reg)
	primary := make(map[string]string)
	claim := func(mac, entityID string) {
		if _, ok := primary[mac]; !ok {
			primary[mac] = entityID
		}
	}

	for _, e := range r.uniFiEntities() {
		if mac := r.entityMAC(e); mac != "" {
			claim(mac, e.EntityID)
		}
	}
	for _, sm := range r.stateMACs() {
		claim(sm[1], sm[0])
	}
	return primary
}

// buildAll maps each MAC to every entity linked to it directly or through
// its device.
func buildAll(reg Registry) map[string][]string {
	r := newResolver(reg)
	sets := make(map[string]map[string]bool)
	add := func(mac, entityID string) {
		if sets[mac] == nil {
			sets[mac] = make(map[string]bool)
		}
		sets[mac][entityID] = true
	}

	byDevice := make(map[string][]RegistryEntity)
	devMAC := make(map[string]string)
	for id, d := range r.devices {
		if mac := deviceMAC(d); mac != "" {
			devMAC[id] = mac
		}
	}
	for _, e := range reg.Entities() {
		if !e.Enabled() {
			continue
		}
		if e.DeviceID != "" {
			byDevice[e.DeviceID] = append(byDevice[e.DeviceID], e)
		}
		if !r.entityIsUniFi(e) {
			continue
		}
		mac := r.entityMAC(e)
		if mac == "" {
			continue
		}
		add(mac, e.EntityID)
		if e.DeviceID != "" && devMAC[e.DeviceID] == "" {
			devMAC[e.DeviceID] = mac
		}
	}

	for deviceID, entities := range byDevice {
		mac, ok := devMAC[deviceID]
		if !ok {
			continue
		}
		for _, e := range entities {
			add(mac, e.EntityID)
		}
	}
	for _, sm := range r.stateMACs() {
		add(sm[1], sm[0])
	}

	all := make(map[string][]string, len(sets))
	for mac, set := range sets {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sortEntityIDs(ids)
		all[mac] = ids
	}
	return all
}

func sortEntities(es []RegistryEntity) {
	sort.SliceStable(es, func(i, j int) bool {
		return lessEntityID(es[i].EntityID, es[j].EntityID)
	})
}

func sortEntityIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return lessEntityID(ids[i], ids[j]) })
}

// lessEntityID orders by domain priority, then entity ID.
func lessEntityID(a, b string) bool {
	pa, pb := DomainPriority(Domain(a)), DomainPriority(Domain(b))
	if pa != pb {
		return pa < pb
	}
	return a < b
}
