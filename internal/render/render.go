// Package render turns controller data into a topology payload and SVG.
package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/svg"
	"github.com/user/netmap/internal/topology"
	"github.com/user/netmap/internal/unifi"
	"github.com/user/netmap/internal/util"
)

// Adapter is the subset of the controller API the renderer reads.
type Adapter interface {
	FetchDevices(ctx context.Context, detailed bool) ([]unifi.Record, error)
	FetchClients(ctx context.Context) ([]unifi.Record, error)
	FetchNetworks(ctx context.Context) ([]unifi.Record, error)
}

// Renderer builds RenderResults. The zero value is ready to use.
type Renderer struct {
	networksMissing sync.Once
}

// Render runs one pass against the adapter. Malformed controller data fails
// with RenderFailed; auth and transport errors are returned unchanged.
func (r *Renderer) Render(ctx context.Context, a Adapter, s model.RenderSettings) (*model.RenderResult, error) {
	devRecs, err := a.FetchDevices(ctx, true)
	if err != nil {
		return nil, dataError(err)
	}
	devices := make([]model.Device, 0, len(devRecs))
	for i, rec := range devRecs {
		d, err := unifi.ParseDevice(rec)
		if err != nil {
			return nil, model.ErrRenderFailed(fmt.Errorf("device %d: %w", i, err))
		}
		devices = append(devices, d)
	}

	cliRecs, err := a.FetchClients(ctx)
	if err != nil {
		return nil, dataError(err)
	}
	clients := make([]model.Client, 0, len(cliRecs))
	for i, rec := range cliRecs {
		c, err := unifi.ParseClient(rec)
		if err != nil {
			return nil, model.ErrRenderFailed(fmt.Errorf("client %d: %w", i, err))
		}
		clients = append(clients, c)
	}

	networks, err := r.loadNetworks(ctx, a)
	if err != nil {
		return nil, err
	}

	b := newBuilder(devices, clients, networks, s)
	payload := b.payload()

	var wan *model.WanInfo
	if s.ShowWAN {
		if gw, ok := b.primaryGateway(); ok {
			wan, err = unifi.ExtractWanInfo(gw, model.WanOverrides{
				WANLabel:     s.WANLabel,
				WAN2Label:    s.WAN2Label,
				WANSpeed:     s.WANSpeed,
				WAN2Speed:    s.WAN2Speed,
				WAN2Disabled: s.WAN2Disabled,
			})
			if err != nil {
				return nil, model.ErrRenderFailed(err)
			}
		}
	}

	return &model.RenderResult{
		SVG:     SVG(payload.Edges, payload.NodeTypes, s, s.SVGTheme, s.IconSet, wan),
		Payload: payload,
		WanInfo: wan,
	}, nil
}

// SVG draws edges and node types with the requested theme and icon set.
func SVG(edges []model.Edge, nodeTypes map[string]model.NodeType, s model.RenderSettings, theme, iconSet string, wan *model.WanInfo) string {
	opts := svg.Options{Width: s.SVGWidth, Height: s.SVGHeight, Theme: theme, IconSet: iconSet}
	if s.SVGIsometric {
		return svg.RenderIsometric(edges, nodeTypes, opts, wan)
	}
	return svg.RenderFlat(edges, nodeTypes, opts, wan)
}

func (r *Renderer) loadNetworks(ctx context.Context, a Adapter) ([]model.Network, error) {
	recs, err := a.FetchNetworks(ctx)
	if errors.Is(err, unifi.ErrNotFound) {
		r.networksMissing.Do(func() {
			util.Warn("Controller does not expose network definitions, VLAN names will use defaults")
		})
		return nil, nil
	}
	if err != nil {
		return nil, dataError(err)
	}
	out := make([]model.Network, 0, len(recs))
	for i, rec := range recs {
		n, err := unifi.ParseNetwork(rec)
		if err != nil {
			return nil, model.ErrRenderFailed(fmt.Errorf("network %d: %w", i, err))
		}
		out = append(out, n)
	}
	return out, nil
}

// dataError wraps malformed responses; everything else passes through.
func dataError(err error) error {
	var decErr *unifi.DecodeError
	var fieldErr *unifi.FieldError
	if errors.As(err, &decErr) || errors.As(err, &fieldErr) {
		return model.ErrRenderFailed(err)
	}
	return err
}

type builder struct {
	s        model.RenderSettings
	devices  []model.Device
	clients  []model.Client
	networks []model.Network

	byMAC    map[string]*model.Device
	gateways []string
}

func newBuilder(devices []model.Device, clients []model.Client, networks []model.Network, s model.RenderSettings) *builder {
	b := &builder{
		s:        s,
		devices:  devices,
		clients:  clients,
		networks: networks,
		byMAC:    make(map[string]*model.Device, len(devices)),
	}
	for i := range devices {
		b.byMAC[devices[i].MAC] = &devices[i]
		if devices[i].Type == model.NodeGateway {
			b.gateways = append(b.gateways, devices[i].Name)
		}
	}
	sort.Strings(b.gateways)
	return b
}

func (b *builder) primaryGateway() (model.Device, bool) {
	if len(b.gateways) == 0 {
		return model.Device{}, false
	}
	for _, d := range b.devices {
		if d.Name == b.gateways[0] && d.Type == model.NodeGateway {
			return d, true
		}
	}
	return model.Device{}, false
}

func (b *builder) payload() *model.Payload {
	p := model.NewPayload()
	p.Gateways = append(p.Gateways, b.gateways...)

	topo := topology.Build(b.devices, topology.Options{
		IncludePorts: b.s.IncludePorts,
		OnlyUniFi:    b.s.OnlyUniFi,
		Gateways:     b.gateways,
	})
	p.Edges = append(p.Edges, topo.Edges()...)

	for _, d := range b.devices {
		p.NodeTypes[d.Name] = d.Type
		p.DeviceMACs[d.Name] = d.MAC
		if d.IP != "" {
			p.DeviceIPs[d.Name] = d.IP
		}
		p.NodeVLANs[d.Name] = nil
	}
	// uplink targets the controller does not manage
	for _, e := range p.Edges {
		for _, n := range []string{e.Left, e.Right} {
			if _, ok := p.NodeTypes[n]; !ok {
				p.NodeTypes[n] = model.NodeOther
				p.NodeVLANs[n] = nil
			}
		}
	}

	vlanByNetwork := b.vlanByNetwork()
	if b.s.IncludeClients {
		b.linkClients(p, vlanByNetwork)
	}

	p.VLANInfo = b.vlanInfo(vlanByNetwork)
	p.APClientCounts = b.apClientCounts()
	b.deviceDetails(p)
	b.clientDetails(p)
	return p
}

func (b *builder) linkClients(p *model.Payload, vlanByNetwork map[string]int) {
	for _, c := range b.clients {
		wireless := isWireless(c)

		var upMAC string
		switch {
		case wireless && (b.s.ClientScope == model.ScopeWireless || b.s.ClientScope == model.ScopeAll):
			upMAC = c.APMAC
		case !wireless && c.SWMAC != "" && (b.s.ClientScope == model.ScopeWired || b.s.ClientScope == model.ScopeAll):
			upMAC = c.SWMAC
		default:
			continue
		}
		up, ok := b.byMAC[upMAC]
		if !ok {
			continue
		}

		name := c.DisplayName()
		if _, taken := p.NodeTypes[name]; taken {
			name = fmt.Sprintf("%s (%s)", name, c.MAC)
			if _, taken := p.NodeTypes[name]; taken {
				continue
			}
		}

		e := model.Edge{Left: up.Name, Right: name, Wireless: wireless}
		if wireless {
			e.Channel = c.Channel
		} else if c.SWPort != nil {
			if b.s.IncludePorts {
				e.Label = fmt.Sprintf("Port %d", *c.SWPort)
			}
			e.PoE = portPoEActive(up, *c.SWPort)
		}
		p.Edges = append(p.Edges, e)

		p.NodeTypes[name] = model.NodeClient
		p.ClientMACs[name] = c.MAC
		if c.IP != "" {
			p.ClientIPs[name] = c.IP
		}
		if v, ok := resolveVLAN(c, vlanByNetwork); ok {
			p.NodeVLANs[name] = &v
		} else {
			p.NodeVLANs[name] = nil
		}
	}
}

func (b *builder) vlanByNetwork() map[string]int {
	out := make(map[string]int)
	for _, n := range b.networks {
		if n.VLAN != nil && n.Name != "" {
			out[n.Name] = *n.VLAN
		}
	}
	return out
}

func (b *builder) vlanInfo(vlanByNetwork map[string]int) map[int]model.VLANInfo {
	info := make(map[int]model.VLANInfo)
	for _, c := range b.clients {
		v, ok := resolveVLAN(c, vlanByNetwork)
		if !ok {
			continue
		}
		entry, exists := info[v]
		if !exists {
			entry = model.VLANInfo{ID: v, Name: fmt.Sprintf("VLAN %d", v), Clients: []string{}}
		}
		entry.ClientCount++
		if len(entry.Clients) < model.MaxVLANSampleClients {
			entry.Clients = append(entry.Clients, c.DisplayName())
		}
		info[v] = entry
	}

	for _, n := range b.networks {
		if n.VLAN == nil {
			continue
		}
		entry, exists := info[*n.VLAN]
		if !exists {
			info[*n.VLAN] = model.VLANInfo{ID: *n.VLAN, Name: n.Name, Clients: []string{}}
			continue
		}
		if n.Name != "" && strings.HasPrefix(strings.ToLower(entry.Name), "vlan ") {
			entry.Name = n.Name
			info[*n.VLAN] = entry
		}
	}
	return info
}

func (b *builder) apClientCounts() map[string]int {
	counts := make(map[string]int)
	for _, c := range b.clients {
		if c.APMAC == "" {
			continue
		}
		if d, ok := b.byMAC[c.APMAC]; ok {
			counts[d.Name]++
		}
	}
	return counts
}

func (b *builder) deviceDetails(p *model.Payload) {
	for _, d := range b.devices {
		detail := model.DeviceDetail{
			MAC:       d.MAC,
			IP:        d.IP,
			Model:     d.Model,
			ModelName: d.ModelName,
		}
		if d.Uplink != nil {
			if up, ok := b.byMAC[d.Uplink.MAC]; ok {
				detail.UplinkDevice = up.Name
			} else {
				detail.UplinkDevice = d.Uplink.Name
			}
		}
		p.DeviceDetails[d.Name] = detail

		if ports := portDetails(d.PortTable); len(ports) > 0 {
			p.DevicePorts[d.Name] = ports
		}
	}
}

func portDetails(table []model.Port) []model.PortDetail {
	var out []model.PortDetail
	seen := make(map[int]bool)
	for _, port := range table {
		if port.PortIdx == nil || seen[*port.PortIdx] {
			continue
		}
		seen[*port.PortIdx] = true
		out = append(out, model.PortDetail{
			Port:       *port.PortIdx,
			Name:       port.Name,
			Speed:      port.Speed,
			PoEEnabled: port.PoEEnable,
			PoEActive:  port.PoEActive(),
			PoEPower:   port.PoEPower,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

func (b *builder) clientDetails(p *model.Payload) {
	for _, c := range b.clients {
		connected := c.APMAC
		if connected == "" {
			connected = c.SWMAC
		}
		p.ClientDetails[c.MAC] = model.ClientDetail{
			Name:           c.DisplayName(),
			MAC:            c.MAC,
			IP:             c.IP,
			VLAN:           c.VLAN,
			Network:        c.NetworkName,
			IsWired:        c.IsWired,
			ConnectedToMAC: connected,
		}
	}
}

// isWireless treats a client as wireless when it has an AP and is not
// explicitly flagged wired.
func isWireless(c model.Client) bool {
	if c.IsWired != nil {
		return !*c.IsWired && c.APMAC != ""
	}
	return c.APMAC != ""
}

func resolveVLAN(c model.Client, vlanByNetwork map[string]int) (int, bool) {
	if c.VLAN != nil {
		return *c.VLAN, true
	}
	if c.NetworkName != "" {
		v, ok := vlanByNetwork[c.NetworkName]
		return v, ok
	}
	return 0, false
}

func portPoEActive(d *model.Device, port int) bool {
	for _, p := range d.PortTable {
		if p.PortIdx != nil && *p.PortIdx == port {
			return p.PoEActive()
		}
	}
	return false
}
