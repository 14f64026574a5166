package model

import "time"

// SchemaVersion is the payload schema version on the wire.
const SchemaVersion = "1.2"

// MaxVLANSampleClients bounds vlan_info[].clients.
const MaxVLANSampleClients = 20

// VLANInfo aggregates clients of one VLAN.
type VLANInfo struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	ClientCount int      `json:"client_count"`
	Clients     []string `json:"clients"`
}

// DeviceDetail describes an infrastructure device in the payload.
type DeviceDetail struct {
	MAC          string `json:"mac"`
	IP           string `json:"ip,omitempty"`
	Model        string `json:"model,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	UplinkDevice string `json:"uplink_device,omitempty"`
}

// PortDetail describes one device port in the payload.
type PortDetail struct {
	Port       int      `json:"port"`
	Name       string   `json:"name,omitempty"`
	Speed      *int     `json:"speed,omitempty"`
	PoEEnabled bool     `json:"poe_enabled"`
	PoEActive  bool     `json:"poe_active"`
	PoEPower   *float64 `json:"poe_power,omitempty"`
}

// ClientDetail describes a client in the payload, keyed by MAC.
type ClientDetail struct {
	Name           string `json:"name"`
	MAC            string `json:"mac"`
	IP             string `json:"ip,omitempty"`
	VLAN           *int   `json:"vlan,omitempty"`
	Network        string `json:"network,omitempty"`
	IsWired        *bool  `json:"is_wired,omitempty"`
	ConnectedToMAC string `json:"connected_to_mac,omitempty"`
}

// Payload is the structured topology description served to consumers.
// VLAN maps are keyed by int in memory and by string on the wire.
type Payload struct {
	SchemaVersion  string                  `json:"schema_version"`
	Edges          []Edge                  `json:"edges"`
	NodeTypes      map[string]NodeType     `json:"node_types"`
	Gateways       []string                `json:"gateways"`
	ClientMACs     map[string]string       `json:"client_macs"`
	DeviceMACs     map[string]string       `json:"device_macs"`
	ClientIPs      map[string]string       `json:"client_ips"`
	DeviceIPs      map[string]string       `json:"device_ips"`
	NodeVLANs      map[string]*int         `json:"node_vlans"`
	VLANInfo       map[int]VLANInfo        `json:"vlan_info"`
	APClientCounts map[string]int          `json:"ap_client_counts"`
	DeviceDetails  map[string]DeviceDetail `json:"device_details"`
	DevicePorts    map[string][]PortDetail `json:"device_ports"`
	ClientDetails  map[string]ClientDetail `json:"client_details"`
}

// NewPayload returns a payload with every map initialized.
func NewPayload() *Payload {
	return &Payload{
		SchemaVersion:  SchemaVersion,
		Edges:          []Edge{},
		NodeTypes:      map[string]NodeType{},
		Gateways:       []string{},
		ClientMACs:     map[string]string{},
		DeviceMACs:     map[string]string{},
		ClientIPs:      map[string]string{},
		DeviceIPs:      map[string]string{},
		NodeVLANs:      map[string]*int{},
		VLANInfo:       map[int]VLANInfo{},
		APClientCounts: map[string]int{},
		DeviceDetails:  map[string]DeviceDetail{},
		DevicePorts:    map[string][]PortDetail{},
		ClientDetails:  map[string]ClientDetail{},
	}
}

// NodeStatus is the online state of a node's tracker entity.
type NodeStatus struct {
	EntityID    string     `json:"entity_id"`
	State       string     `json:"state"`
	LastChanged *time.Time `json:"last_changed,omitempty"`
}

// RelatedEntity is one external entity linked to a node.
type RelatedEntity struct {
	EntityID     string     `json:"entity_id"`
	Domain       string     `json:"domain"`
	State        string     `json:"state,omitempty"`
	LastChanged  *time.Time `json:"last_changed,omitempty"`
	IP           string     `json:"ip,omitempty"`
	FriendlyName string     `json:"friendly_name,omitempty"`
}

// EnrichedPayload is a payload with external entity linkage.
type EnrichedPayload struct {
	Payload
	ClientEntities  map[string]string          `json:"client_entities,omitempty"`
	DeviceEntities  map[string]string          `json:"device_entities,omitempty"`
	NodeEntities    map[string]string          `json:"node_entities,omitempty"`
	NodeStatus      map[string]NodeStatus      `json:"node_status,omitempty"`
	RelatedEntities map[string][]RelatedEntity `json:"related_entities,omitempty"`
}

// RenderResult is the output of one render pass. It is immutable once published.
type RenderResult struct {
	SVG     string
	Payload *Payload
	WanInfo *WanInfo
}

// Clone returns a deep copy of the payload.
func (p *Payload) Clone() *Payload {
	out := &Payload{
		SchemaVersion:  p.SchemaVersion,
		Edges:          make([]Edge, len(p.Edges)),
		NodeTypes:      make(map[string]NodeType, len(p.NodeTypes)),
		Gateways:       append([]string{}, p.Gateways...),
		ClientMACs:     copyStrings(p.ClientMACs),
		DeviceMACs:     copyStrings(p.DeviceMACs),
		ClientIPs:      copyStrings(p.ClientIPs),
		DeviceIPs:      copyStrings(p.DeviceIPs),
		NodeVLANs:      make(map[string]*int, len(p.NodeVLANs)),
		VLANInfo:       make(map[int]VLANInfo, len(p.VLANInfo)),
		APClientCounts: make(map[string]int, len(p.APClientCounts)),
		DeviceDetails:  make(map[string]DeviceDetail, len(p.DeviceDetails)),
		DevicePorts:    make(map[string][]PortDetail, len(p.DevicePorts)),
		ClientDetails:  make(map[string]ClientDetail, len(p.ClientDetails)),
	}
	for i, e := range p.Edges {
		e.Channel = copyInt(e.Channel)
		e.Speed = copyInt(e.Speed)
		out.Edges[i] = e
	}
	for k, v := range p.NodeTypes {
		out.NodeTypes[k] = v
	}
	for k, v := range p.NodeVLANs {
		out.NodeVLANs[k] = copyInt(v)
	}
	for k, v := range p.VLANInfo {
		v.Clients = append([]string{}, v.Clients...)
		out.VLANInfo[k] = v
	}
	for k, v := range p.APClientCounts {
		out.APClientCounts[k] = v
	}
	for k, v := range p.DeviceDetails {
		out.DeviceDetails[k] = v
	}
	for k, ports := range p.DevicePorts {
		cp := make([]PortDetail, len(ports))
		for i, port := range ports {
			port.Speed = copyInt(port.Speed)
			if port.PoEPower != nil {
				w := *port.PoEPower
				port.PoEPower = &w
			}
			cp[i] = port
		}
		out.DevicePorts[k] = cp
	}
	for k, v := range p.ClientDetails {
		v.VLAN = copyInt(v.VLAN)
		if v.IsWired != nil {
			w := *v.IsWired
			v.IsWired = &w
		}
		out.ClientDetails[k] = v
	}
	return out
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
