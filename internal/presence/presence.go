// Package presence derives per-device, per-client and per-VLAN indicators
// from the latest render result.
package presence

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/user/netmap/internal/model"
)

// Connection types reported for tracked clients.
const (
	ConnectionWired    = "wired"
	ConnectionWireless = "wireless"
)

// DevicePresence is on while the device appears in the topology.
type DevicePresence struct {
	UniqueID         string         `json:"unique_id"`
	Name             string         `json:"name"`
	On               bool           `json:"on"`
	DeviceType       model.NodeType `json:"device_type"`
	MAC              string         `json:"mac,omitempty"`
	IP               string         `json:"ip,omitempty"`
	Model            string         `json:"model,omitempty"`
	UplinkDevice     string         `json:"uplink_device,omitempty"`
	ClientsConnected *int           `json:"clients_connected,omitempty"`
}

// ClientPresence is on while the tracked MAC is connected.
type ClientPresence struct {
	UniqueID       string `json:"unique_id"`
	MAC            string `json:"mac"`
	Name           string `json:"name,omitempty"`
	On             bool   `json:"on"`
	IP             string `json:"ip,omitempty"`
	VLAN           *int   `json:"vlan,omitempty"`
	Network        string `json:"network,omitempty"`
	ConnectedTo    string `json:"connected_to,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"`
}

// VLANClients counts the clients of one VLAN.
type VLANClients struct {
	UniqueID string   `json:"unique_id"`
	VLANID   int      `json:"vlan_id"`
	VLANName string   `json:"vlan_name"`
	Value    int      `json:"value"`
	Clients  []string `json:"clients"`
}

// Snapshot is every projection of one entry.
type Snapshot struct {
	Devices []DevicePresence `json:"devices"`
	Clients []ClientPresence `json:"clients"`
	VLANs   []VLANClients    `json:"vlans"`
}

// Tracker remembers every device and VLAN it has seen so projections keep
// their identity when a device drops out of a refresh.
type Tracker struct {
	entryID string
	tracked []string

	mu      sync.Mutex
	devices map[string]model.NodeType
	vlans   map[int]string
}

// NewTracker creates a tracker for the entry and its tracked client MACs.
func NewTracker(entryID string, trackedMACs []string) *Tracker {
	return &Tracker{
		entryID: entryID,
		tracked: append([]string(nil), trackedMACs...),
		devices: make(map[string]model.NodeType),
		vlans:   make(map[int]string),
	}
}

// SetTracked replaces the tracked client MACs. Known devices and VLANs are kept.
func (t *Tracker) SetTracked(macs []string) {
	t.mu.Lock()
	t.tracked = append([]string(nil), macs...)
	t.mu.Unlock()
}

// Update registers devices and VLANs new in res. Suitable as a coordinator listener.
func (t *Tracker) Update(res *model.RenderResult) {
	if res == nil || res.Payload == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, typ := range res.Payload.NodeTypes {
		if typ.IsInfrastructure() {
			t.devices[name] = typ
		}
	}
	for id, v := range res.Payload.VLANInfo {
		t.vlans[id] = v.Name
	}
}

// Snapshot evaluates every known projection against res, which may be nil.
func (t *Tracker) Snapshot(res *model.RenderResult) Snapshot {
	t.Update(res)

	p := model.NewPayload()
	if res != nil && res.Payload != nil {
		p = res.Payload
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Devices: make([]DevicePresence, 0, len(t.devices)),
		Clients: make([]ClientPresence, 0, len(t.tracked)),
		VLANs:   make([]VLANClients, 0, len(t.vlans)),
	}

	for name, typ := range t.devices {
		_, on := p.NodeTypes[name]
		d := DevicePresence{
			UniqueID:   fmt.Sprintf("%s_device_%s", t.entryID, NormalizeName(name)),
			Name:       name,
			On:         on,
			DeviceType: typ,
		}
		if detail, ok := p.DeviceDetails[name]; ok {
			d.MAC = detail.MAC
			d.IP = detail.IP
			d.Model = detail.ModelName
			if d.Model == "" {
				d.Model = detail.Model
			}
			d.UplinkDevice = detail.UplinkDevice
		}
		if typ == model.NodeAP {
			n := p.APClientCounts[name]
			d.ClientsConnected = &n
		}
		snap.Devices = append(snap.Devices, d)
	}
	sort.Slice(snap.Devices, func(i, j int) bool { return snap.Devices[i].Name < snap.Devices[j].Name })

	macToDevice := make(map[string]string, len(p.DeviceMACs))
	for name, mac := range p.DeviceMACs {
		macToDevice[mac] = name
	}
	for _, mac := range t.tracked {
		c := ClientPresence{
			UniqueID: fmt.Sprintf("%s_client_%s", t.entryID, strings.ReplaceAll(mac, ":", "")),
			MAC:      mac,
		}
		if detail, ok := p.ClientDetails[mac]; ok {
			c.On = true
			c.Name = detail.Name
			c.IP = detail.IP
			c.VLAN = detail.VLAN
			c.Network = detail.Network
			c.ConnectedTo = macToDevice[detail.ConnectedToMAC]
			if detail.IsWired != nil {
				c.ConnectionType = ConnectionWireless
				if *detail.IsWired {
					c.ConnectionType = ConnectionWired
				}
			}
		}
		snap.Clients = append(snap.Clients, c)
	}

	for id, name := range t.vlans {
		v := VLANClients{
			UniqueID: fmt.Sprintf("%s_vlan_%d", t.entryID, id),
			VLANID:   id,
			VLANName: name,
			Clients:  []string{},
		}
		if info, ok := p.VLANInfo[id]; ok {
			v.VLANName = info.Name
			v.Value = info.ClientCount
			v.Clients = info.Clients
		}
		snap.VLANs = append(snap.VLANs, v)
	}
	sort.Slice(snap.VLANs, func(i, j int) bool { return snap.VLANs[i].VLANID < snap.VLANs[j].VLANID })
	return snap
}

// NormalizeName lowercases and replaces spaces, dashes and dots with underscores.
func NormalizeName(name string) string {
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(strings.ToLower(name))
}
