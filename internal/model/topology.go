package model

// NodeType classifies a node in the topology.
type NodeType string

const (
	NodeGateway NodeType = "gateway"
	NodeSwitch  NodeType = "switch"
	NodeAP      NodeType = "ap"
	NodeClient  NodeType = "client"
	NodeOther   NodeType = "other"
)

// IsInfrastructure reports whether the type is a gateway, switch or AP.
func (t NodeType) IsInfrastructure() bool {
	return t == NodeGateway || t == NodeSwitch || t == NodeAP
}

// Uplink points at the upstream device by MAC.
type Uplink struct {
	MAC        string
	Name       string
	RemotePort *int
	Speed      *int
	Wireless   bool
	Channel    *int
}

// Device is a normalized UniFi network device.
type Device struct {
	Name      string
	MAC       string
	IP        string
	Model     string
	ModelName string
	Type      NodeType
	Uplink    *Uplink
	PortTable []Port
	// Raw WAN blocks kept for WAN extraction on gateways.
	WAN1 map[string]any
	WAN2 map[string]any
}

// Port is a switch port.
type Port struct {
	PortIdx   *int
	Name      string
	Speed     *int
	PoEEnable bool
	PoEGood   bool
	PoEPower  *float64
}

// PoEActive reports whether PoE is enabled and delivering power.
func (p Port) PoEActive() bool {
	return p.PoEEnable && p.PoEGood
}

// Client is a station seen by the controller.
type Client struct {
	Name        string
	Hostname    string
	MAC         string
	IP          string
	VLAN        *int
	NetworkName string
	IsWired     *bool
	APMAC       string
	SWMAC       string
	SWPort      *int
	Channel     *int
}

// DisplayName returns the name shown for a client.
func (c Client) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Hostname != "":
		return c.Hostname
	default:
		return c.MAC
	}
}

// Network is a controller network definition.
type Network struct {
	Name    string
	VLAN    *int
	Purpose string
}

// Edge links two nodes by name. Left is the upstream side.
type Edge struct {
	Channel  *int   `json:"channel,omitempty"`
	Label    string `json:"label,omitempty"`
	Left     string `json:"left"`
	PoE      bool   `json:"poe"`
	Right    string `json:"right"`
	Speed    *int   `json:"speed,omitempty"`
	Wireless bool   `json:"wireless"`
}

// TopologyResult holds both views of the device graph.
type TopologyResult struct {
	TreeEdges []Edge
	RawEdges  []Edge
}

// Edges returns tree edges when present, raw edges otherwise.
func (t TopologyResult) Edges() []Edge {
	if len(t.TreeEdges) > 0 {
		return t.TreeEdges
	}
	if len(t.RawEdges) > 0 {
		return t.RawEdges
	}
	return nil
}

// WanLink describes one WAN interface on the gateway.
type WanLink struct {
	Label    string  `json:"label,omitempty"`
	IP       string  `json:"ip,omitempty"`
	Speed    string  `json:"speed,omitempty"`
	Up       bool    `json:"up"`
	RxRate   float64 `json:"rx_rate,omitempty"`
	TxRate   float64 `json:"tx_rate,omitempty"`
	Disabled bool    `json:"disabled"`
}

// WanInfo carries gateway WAN details for the SVG header band.
type WanInfo struct {
	WAN1 *WanLink `json:"wan1,omitempty"`
	WAN2 *WanLink `json:"wan2,omitempty"`
}

// WanOverrides replaces controller-provided WAN labels and speeds.
type WanOverrides struct {
	WANLabel     string
	WAN2Label    string
	WANSpeed     string
	WAN2Speed    string
	WAN2Disabled string
}
