package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayload_Clone(t *testing.T) {
	vlan, speed := 10, 1000
	wired := true
	p := NewPayload()
	p.Edges = []Edge{{Left: "GW", Right: "SW", Speed: &speed}}
	p.NodeTypes["GW"] = NodeGateway
	p.NodeVLANs["Laptop"] = &vlan
	p.VLANInfo[10] = VLANInfo{ID: 10, Name: "IoT", ClientCount: 1, Clients: []string{"Laptop"}}
	p.ClientDetails["aa:bb:cc:00:00:01"] = ClientDetail{Name: "Laptop", VLAN: &vlan, IsWired: &wired}

	c := p.Clone()
	assert.Equal(t, p, c)

	*c.Edges[0].Speed = 10
	*c.NodeVLANs["Laptop"] = 20
	c.VLANInfo[10].Clients[0] = "Other"
	c.NodeTypes["SW"] = NodeSwitch

	assert.Equal(t, 1000, *p.Edges[0].Speed)
	assert.Equal(t, 10, *p.NodeVLANs["Laptop"])
	assert.Equal(t, "Laptop", p.VLANInfo[10].Clients[0])
	assert.NotContains(t, p.NodeTypes, "SW")
}
