package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/unifi"
)

type fakeAdapter struct {
	devices  []unifi.Record
	clients  []unifi.Record
	networks []unifi.Record

	devicesErr  error
	networksErr error
}

func (f *fakeAdapter) FetchDevices(context.Context, bool) ([]unifi.Record, error) {
	return f.devices, f.devicesErr
}

func (f *fakeAdapter) FetchClients(context.Context) ([]unifi.Record, error) {
	return f.clients, nil
}

func (f *fakeAdapter) FetchNetworks(context.Context) ([]unifi.Record, error) {
	return f.networks, f.networksErr
}

func settings(mod func(*model.RenderSettings)) model.RenderSettings {
	s := model.DefaultOptions().RenderSettings()
	if mod != nil {
		mod(&s)
	}
	return s
}

func homeNetwork() *fakeAdapter {
	return &fakeAdapter{
		devices: []unifi.Record{
			{"mac": "11:00:00:00:00:01", "name": "Gateway", "type": "udm", "ip": "10.0.0.1",
				"wan1": map[string]any{"name": "WAN", "up": true}},
			{"mac": "11:00:00:00:00:02", "name": "Switch", "type": "usw",
				"uplink": map[string]any{"uplink_mac": "11:00:00:00:00:01", "uplink_remote_port": float64(1)},
				"port_table": []any{
					map[string]any{"port_idx": float64(5), "poe_enable": true, "poe_good": true},
					map[string]any{"port_idx": float64(2)},
					map[string]any{"name": "no index"},
					map[string]any{"port_idx": float64(9)},
				}},
			{"mac": "11:00:00:00:00:03", "name": "AP", "type": "uap",
				"uplink": map[string]any{"uplink_mac": "11:00:00:00:00:02", "uplink_remote_port": float64(5)}},
		},
		clients: []unifi.Record{
			{"mac": "22:00:00:00:00:01", "name": "Desk", "is_wired": true, "sw_mac": "11:00:00:00:00:02", "sw_port": float64(2), "vlan": float64(10)},
			{"mac": "22:00:00:00:00:02", "name": "Phone", "is_wired": false, "ap_mac": "11:00:00:00:00:03", "network": "IoT"},
			{"mac": "22:00:00:00:00:03", "name": "Switch", "is_wired": false, "ap_mac": "11:00:00:00:00:03"},
			{"mac": "22:00:00:00:00:04", "hostname": "tv", "is_wired": false, "ap_mac": "ff:00:00:00:00:00"},
		},
		networks: []unifi.Record{
			{"name": "IoT", "vlan": float64(10)},
			{"name": "Guest", "vlan": "30"},
		},
	}
}

func TestRender_EmptyEdges(t *testing.T) {
	a := &fakeAdapter{devices: []unifi.Record{
		{"mac": "11:00:00:00:00:01", "name": "G", "type": "ugw"},
		{"mac": "11:00:00:00:00:02", "name": "S", "type": "usw"},
	}}

	var r Renderer
	res, err := r.Render(context.Background(), a, settings(nil))
	require.NoError(t, err)

	assert.Equal(t, map[string]model.NodeType{"G": model.NodeGateway, "S": model.NodeSwitch}, res.Payload.NodeTypes)
	assert.Empty(t, res.Payload.Edges)
	assert.Equal(t, []string{"G"}, res.Payload.Gateways)
	assert.True(t, strings.HasPrefix(res.SVG, "<svg"))
}

func TestRender_VLANAggregation(t *testing.T) {
	a := &fakeAdapter{
		clients: []unifi.Record{
			{"mac": "22:00:00:00:00:01", "name": "A", "vlan": float64(10)},
			{"mac": "22:00:00:00:00:02", "name": "B", "vlan": float64(10)},
			{"mac": "22:00:00:00:00:03", "name": "C", "vlan": float64(20)},
		},
		networks: []unifi.Record{{"name": "IoT", "vlan": float64(10)}},
	}

	var r Renderer
	res, err := r.Render(context.Background(), a, settings(nil))
	require.NoError(t, err)

	assert.Equal(t, map[int]model.VLANInfo{
		10: {ID: 10, Name: "IoT", ClientCount: 2, Clients: []string{"A", "B"}},
		20: {ID: 20, Name: "VLAN 20", ClientCount: 1, Clients: []string{"C"}},
	}, res.Payload.VLANInfo)

	raw, err := json.Marshal(res.Payload)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Contains(t, wire["vlan_info"], "10")
	assert.Equal(t, "1.2", wire["schema_version"])
}

func TestRender_VLANSampleLimit(t *testing.T) {
	a := &fakeAdapter{}
	for i := 0; i < 25; i++ {
		a.clients = append(a.clients, unifi.Record{"mac": fmt.Sprintf("22:00:00:00:00:%02x", i), "vlan": float64(5)})
	}

	var r Renderer
	res, err := r.Render(context.Background(), a, settings(nil))
	require.NoError(t, err)
	assert.Equal(t, 25, res.Payload.VLANInfo[5].ClientCount)
	assert.Len(t, res.Payload.VLANInfo[5].Clients, model.MaxVLANSampleClients)
}

func TestRender_ClientScope(t *testing.T) {
	tests := map[string]struct {
		scope     model.ClientScope
		include   bool
		wantNodes []string
		absent    []string
	}{
		"clients excluded": {scope: model.ScopeAll, include: false, absent: []string{"Desk", "Phone"}},
		"wired":            {scope: model.ScopeWired, include: true, wantNodes: []string{"Desk"}, absent: []string{"Phone"}},
		"wireless":         {scope: model.ScopeWireless, include: true, wantNodes: []string{"Phone", "Switch (22:00:00:00:00:03)"}, absent: []string{"Desk"}},
		"all":              {scope: model.ScopeAll, include: true, wantNodes: []string{"Desk", "Phone"}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var r Renderer
			res, err := r.Render(context.Background(), homeNetwork(), settings(func(s *model.RenderSettings) {
				s.IncludeClients = test.include
				s.ClientScope = test.scope
			}))
			require.NoError(t, err)
			p := res.Payload

			for _, n := range test.wantNodes {
				assert.Equal(t, model.NodeClient, p.NodeTypes[n], n)
				assert.NotEmpty(t, p.ClientMACs[n], n)
			}
			for _, n := range test.absent {
				assert.NotContains(t, p.NodeTypes, n)
			}
			// tv hangs off an unknown AP and is never linked
			assert.NotContains(t, p.NodeTypes, "tv")
			assert.Equal(t, model.NodeSwitch, p.NodeTypes["Switch"])
		})
	}
}

func TestRender_Invariants(t *testing.T) {
	var r Renderer
	res, err := r.Render(context.Background(), homeNetwork(), settings(func(s *model.RenderSettings) {
		s.IncludeClients = true
		s.IncludePorts = true
		s.ClientScope = model.ScopeAll
	}))
	require.NoError(t, err)
	p := res.Payload

	for _, e := range p.Edges {
		assert.Contains(t, p.NodeTypes, e.Left)
		assert.Contains(t, p.NodeTypes, e.Right)
	}
	for n, typ := range p.NodeTypes {
		if typ == model.NodeGateway {
			assert.Contains(t, p.Gateways, n)
		}
	}

	ports := p.DevicePorts["Switch"]
	require.Len(t, ports, 3)
	for i := 1; i < len(ports); i++ {
		assert.Less(t, ports[i-1].Port, ports[i].Port)
	}
	assert.True(t, ports[1].PoEActive)

	// Phone, Switch client; tv's AP is unknown
	assert.Equal(t, map[string]int{"AP": 2}, p.APClientCounts)

	assert.Equal(t, 2, p.VLANInfo[10].ClientCount)
	assert.Equal(t, "IoT", p.VLANInfo[10].Name)
	assert.Equal(t, "Guest", p.VLANInfo[30].Name)
	assert.Zero(t, p.VLANInfo[30].ClientCount)

	assert.Equal(t, "11:00:00:00:00:03", p.ClientDetails["22:00:00:00:00:02"].ConnectedToMAC)
	assert.Equal(t, "11:00:00:00:00:02", p.ClientDetails["22:00:00:00:00:01"].ConnectedToMAC)
	assert.Equal(t, "Switch", p.DeviceDetails["AP"].UplinkDevice)

	var desk model.Edge
	for _, e := range p.Edges {
		if e.Right == "Desk" {
			desk = e
		}
	}
	assert.Equal(t, "Switch", desk.Left)
	assert.Equal(t, "Port 2", desk.Label)
	assert.False(t, desk.Wireless)

	require.NotNil(t, res.WanInfo)
	assert.Equal(t, "WAN", res.WanInfo.WAN1.Label)
}

func TestRender_NetworksMissing(t *testing.T) {
	a := homeNetwork()
	a.networksErr = fmt.Errorf("rest/networkconf: %w", unifi.ErrNotFound)

	var r Renderer
	res, err := r.Render(context.Background(), a, settings(nil))
	require.NoError(t, err)
	assert.Equal(t, "VLAN 10", res.Payload.VLANInfo[10].Name)
}

func TestRender_Errors(t *testing.T) {
	authErr := &unifi.AuthError{StatusCode: 401}

	tests := map[string]struct {
		adapter  *fakeAdapter
		wantKind model.Kind
		wantErr  error
	}{
		"bad device field": {
			adapter:  &fakeAdapter{devices: []unifi.Record{{"mac": "11:00:00:00:00:01", "name": []any{}}}},
			wantKind: model.KindRenderFailed,
		},
		"decode failure": {
			adapter:  &fakeAdapter{devicesErr: &unifi.DecodeError{Path: "x", Err: errors.New("eof")}},
			wantKind: model.KindRenderFailed,
		},
		"auth passes through": {
			adapter: &fakeAdapter{devicesErr: authErr},
			wantErr: authErr,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var r Renderer
			_, err := r.Render(context.Background(), test.adapter, settings(nil))
			require.Error(t, err)
			if test.wantErr != nil {
				assert.Same(t, test.wantErr, err)
				return
			}
			assert.Equal(t, test.wantKind, model.KindOf(err))
		})
	}
}

func TestRender_Isometric(t *testing.T) {
	var r Renderer
	flat, err := r.Render(context.Background(), homeNetwork(), settings(nil))
	require.NoError(t, err)
	iso, err := r.Render(context.Background(), homeNetwork(), settings(func(s *model.RenderSettings) {
		s.SVGIsometric = true
	}))
	require.NoError(t, err)
	assert.NotEqual(t, flat.SVG, iso.SVG)
	assert.Equal(t, flat.Payload, iso.Payload)
}
