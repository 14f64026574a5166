// Package topology derives the device graph from UniFi uplink records.
package topology

import (
	"fmt"
	"sort"

	"github.com/user/netmap/internal/model"
)

// Options control edge construction.
type Options struct {
	IncludePorts bool
	// OnlyUniFi drops uplinks to devices the controller does not manage.
	OnlyUniFi bool
	// Gateways are the names of the tree roots.
	Gateways []string
}

// Build returns the raw uplink graph and a spanning tree rooted at the gateways.
func Build(devices []model.Device, opts Options) model.TopologyResult {
	raw := RawEdges(devices, opts)
	return model.TopologyResult{
		RawEdges:  raw,
		TreeEdges: TreeEdges(raw, opts.Gateways),
	}
}

// RawEdges returns one edge per device uplink, upstream on the left.
// Duplicate pairs keep the first edge in device name order.
func RawEdges(devices []model.Device, opts Options) []model.Edge {
	byMAC := make(map[string]*model.Device, len(devices))
	for i := range devices {
		byMAC[devices[i].MAC] = &devices[i]
	}

	sorted := make([]*model.Device, 0, len(devices))
	for i := range devices {
		sorted = append(sorted, &devices[i])
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	seen := make(map[[2]string]bool)
	var edges []model.Edge
	for _, d := range sorted {
		up := d.Uplink
		if up == nil || up.MAC == "" || up.MAC == d.MAC {
			continue
		}

		var upstream string
		parent, known := byMAC[up.MAC]
		switch {
		case known:
			upstream = parent.Name
		case opts.OnlyUniFi:
			continue
		case up.Name != "":
			upstream = up.Name
		default:
			upstream = up.MAC
		}
		if upstream == d.Name {
			continue
		}

		key := pairKey(upstream, d.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		e := model.Edge{
			Left:     upstream,
			Right:    d.Name,
			Speed:    up.Speed,
			Wireless: up.Wireless,
		}
		if up.Wireless {
			e.Channel = up.Channel
		}
		if up.RemotePort != nil {
			if opts.IncludePorts {
				e.Label = fmt.Sprintf("Port %d", *up.RemotePort)
			}
			if known {
				e.PoE = portPoEActive(parent, *up.RemotePort)
			}
		}
		edges = append(edges, e)
	}

	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Left != edges[j].Left {
			return edges[i].Left < edges[j].Left
		}
		return edges[i].Right < edges[j].Right
	})
	return edges
}

// TreeEdges walks raw edges breadth-first from the gateways and keeps the
// edge that first reaches each node. Components without a gateway are
// rooted at their nodes that have no upstream. Returns nil without gateways.
func TreeEdges(raw []model.Edge, gateways []string) []model.Edge {
	if len(gateways) == 0 || len(raw) == 0 {
		return nil
	}

	adj := make(map[string][]int)
	hasUpstream := make(map[string]bool)
	var nodes []string
	addNode := func(n string) {
		if _, ok := adj[n]; !ok {
			adj[n] = nil
			nodes = append(nodes, n)
		}
	}
	for i, e := range raw {
		addNode(e.Left)
		addNode(e.Right)
		adj[e.Left] = append(adj[e.Left], i)
		adj[e.Right] = append(adj[e.Right], i)
		hasUpstream[e.Right] = true
	}
	sort.Strings(nodes)
	for n := range adj {
		idx := adj[n]
		sort.Slice(idx, func(a, b int) bool {
			return other(raw[idx[a]], n) < other(raw[idx[b]], n)
		})
	}

	roots := append([]string(nil), gateways...)
	sort.Strings(roots)
	for _, n := range nodes {
		if !hasUpstream[n] {
			roots = append(roots, n)
		}
	}
	roots = append(roots, nodes...)

	visited := make(map[string]bool)
	var tree []model.Edge
	for _, root := range roots {
		if visited[root] {
			continue
		}
		if _, ok := adj[root]; !ok {
			continue
		}
		visited[root] = true
		queue := []string{root}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			for _, i := range adj[n] {
				next := other(raw[i], n)
				if visited[next] {
					continue
				}
				visited[next] = true
				e := raw[i]
				e.Left, e.Right = n, next
				tree = append(tree, e)
				queue = append(queue, next)
			}
		}
	}
	return tree
}

// Nodes returns every node name referenced by the edges, sorted.
func Nodes(edges []model.Edge) []string {
	set := make(map[string]struct{})
	for _, e := range edges {
		set[e.Left] = struct{}{}
		set[e.Right] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func portPoEActive(d *model.Device, port int) bool {
	for _, p := range d.PortTable {
		if p.PortIdx != nil && *p.PortIdx == port {
			return p.PoEActive()
		}
	}
	return false
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func other(e model.Edge, n string) string {
	if e.Left == n {
		return e.Right
	}
	return e.Left
}
