package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/netmap/internal/model"
)

var classColors = []struct {
	typ   model.NodeType
	style string
}{
	{model.NodeGateway, "fill:#90EE90,stroke:#228B22"},
	{model.NodeSwitch, "fill:#87CEEB,stroke:#1E90FF"},
	{model.NodeAP, "fill:#FFE4B5,stroke:#FF8C00"},
	{model.NodeClient, "fill:#F5F5F5,stroke:#A9A9A9"},
	{model.NodeOther, "fill:#FFB6C1,stroke:#FF0000"},
}

// GenerateTopologyDiagram creates a Mermaid flowchart of the payload's edges.
// Wireless links are dashed and PoE links are labelled.
func GenerateTopologyDiagram(p *model.Payload) string {
	if p == nil || len(p.Edges) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart TD\n")

	ids := nodeIDs(p)
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		typ, ok := p.NodeTypes[name]
		if !ok {
			typ = model.NodeOther
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]:::%s\n", ids[name], label(name), typ))
	}
	sb.WriteString("\n")

	for _, e := range p.Edges {
		arrow := "-->"
		if e.Wireless {
			arrow = "-.->"
		}
		var parts []string
		if e.Label != "" {
			parts = append(parts, e.Label)
		}
		if e.PoE {
			parts = append(parts, "PoE")
		}
		if len(parts) > 0 {
			sb.WriteString(fmt.Sprintf("    %s %s|%s| %s\n", ids[e.Left], arrow, label(strings.Join(parts, ", ")), ids[e.Right]))
		} else {
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", ids[e.Left], arrow, ids[e.Right]))
		}
	}

	sb.WriteString("\n")
	for _, c := range classColors {
		sb.WriteString(fmt.Sprintf("    classDef %s %s\n", c.typ, c.style))
	}
	sb.WriteString("```\n")

	return sb.String()
}

// nodeIDs assigns stable Mermaid IDs in name order.
func nodeIDs(p *model.Payload) map[string]string {
	seen := make(map[string]bool)
	for _, e := range p.Edges {
		seen[e.Left] = true
		seen[e.Right] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make(map[string]string, len(names))
	for i, name := range names {
		ids[name] = fmt.Sprintf("N%d", i+1)
	}
	return ids
}

// label escapes characters Mermaid treats as syntax.
func label(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "|", "#124;").Replace(s)
}
