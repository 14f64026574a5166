package svg

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/user/netmap/internal/model"
)

// RenderFlat draws a top-down layered diagram.
func RenderFlat(edges []model.Edge, nodeTypes map[string]model.NodeType, opts Options, wan *model.WanInfo) string {
	t, _ := LookupTheme(opts.Theme)
	l := buildLayout(edges, nodeTypes)

	top := 0.0
	if hasWan(wan) {
		top = headerSize
	}
	width, height := l.position(top)

	var sb strings.Builder
	openDocument(&sb, width, height, opts, t)
	if hasWan(wan) {
		writeHeader(&sb, width, t, wan)
	}

	sb.WriteString(`<g class="edges">`)
	for _, e := range edges {
		a, b := l.byName[e.Left], l.byName[e.Right]
		color, dash := edgeStyle(e, t)
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"%s/>`,
			a.x, a.y+nodeHeight/2, b.x, b.y-nodeHeight/2, color, dash)
		if label := edgeLabel(e); label != "" {
			fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="10" text-anchor="middle" fill="%s">%s</text>`,
				(a.x+b.x)/2, (a.y+b.y)/2, t.MutedText, esc(label))
		}
	}
	sb.WriteString(`</g>`)

	sb.WriteString(`<g class="nodes">`)
	for _, n := range l.nodes {
		color := t.nodeColor(n.typ)
		fmt.Fprintf(&sb, `<g class="node %s" data-name="%s">`, n.typ, esc(n.name))
		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.0f" height="%.0f" rx="10" fill="%s" stroke="%s"/>`,
			n.x-nodeWidth/2, n.y-nodeHeight/2, nodeWidth, nodeHeight, t.Background, t.NodeStroke)
		lookupIcon(opts.IconSet, n.typ)(&sb, n.x, n.y-10, color)
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="12" text-anchor="middle" fill="%s">%s</text>`,
			n.x, n.y+20, t.Text, esc(truncate(n.name, 20)))
		sb.WriteString(`</g>`)
	}
	sb.WriteString(`</g></svg>`)
	return sb.String()
}

var (
	isoCos = math.Cos(math.Pi / 6)
	isoSin = math.Sin(math.Pi / 6)
)

const cubeSize = 28.0

// RenderIsometric draws the same layout projected onto an isometric plane.
func RenderIsometric(edges []model.Edge, nodeTypes map[string]model.NodeType, opts Options, wan *model.WanInfo) string {
	t, _ := LookupTheme(opts.Theme)
	l := buildLayout(edges, nodeTypes)
	l.position(0)

	// project, then shift everything into the positive quadrant
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range l.nodes {
		x := (n.x - n.y) * isoCos
		y := (n.x + n.y) * isoSin
		n.x, n.y = x, y
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	if len(l.nodes) == 0 {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}
	top := 0.0
	if hasWan(wan) {
		top = headerSize
	}
	for _, n := range l.nodes {
		n.x += margin + colWidth/2 - minX
		n.y += top + margin + cubeSize*2 - minY
	}
	width := math.Max(maxX-minX+2*margin+colWidth, 2*margin+2*colWidth)
	height := maxY - minY + top + 2*margin + cubeSize*4

	var sb strings.Builder
	openDocument(&sb, width, height, opts, t)
	if hasWan(wan) {
		writeHeader(&sb, width, t, wan)
	}

	sb.WriteString(`<g class="edges">`)
	for _, e := range edges {
		a, b := l.byName[e.Left], l.byName[e.Right]
		color, dash := edgeStyle(e, t)
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"%s/>`,
			a.x, a.y, b.x, b.y, color, dash)
		if label := edgeLabel(e); label != "" {
			fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="10" text-anchor="middle" fill="%s">%s</text>`,
				(a.x+b.x)/2, (a.y+b.y)/2-4, t.MutedText, esc(label))
		}
	}
	sb.WriteString(`</g>`)

	// back to front so nearer cubes overlap farther ones
	order := append([]*node(nil), l.nodes...)
	sort.SliceStable(order, func(i, j int) bool { return order[i].y < order[j].y })

	sb.WriteString(`<g class="nodes">`)
	for _, n := range order {
		color := t.nodeColor(n.typ)
		fmt.Fprintf(&sb, `<g class="node %s" data-name="%s">`, n.typ, esc(n.name))
		writeCube(&sb, n.x, n.y, color)
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="12" text-anchor="middle" fill="%s">%s</text>`,
			n.x, n.y+cubeSize*1.6, t.Text, esc(truncate(n.name, 20)))
		sb.WriteString(`</g>`)
	}
	sb.WriteString(`</g></svg>`)
	return sb.String()
}

func writeCube(sb *strings.Builder, cx, cy float64, color string) {
	s := cubeSize
	dx, dy := s*isoCos, s*isoSin
	topFace := []float64{cx, cy - s, cx + dx, cy - s + dy, cx, cy - s + 2*dy, cx - dx, cy - s + dy}
	leftFace := []float64{cx - dx, cy - s + dy, cx, cy - s + 2*dy, cx, cy + 2*dy, cx - dx, cy + dy}
	rightFace := []float64{cx + dx, cy - s + dy, cx, cy - s + 2*dy, cx, cy + 2*dy, cx + dx, cy + dy}

	fmt.Fprintf(sb, `<polygon points="%s" fill="%s"/>`, points(leftFace), shade(color, 0.75))
	fmt.Fprintf(sb, `<polygon points="%s" fill="%s"/>`, points(rightFace), shade(color, 0.55))
	fmt.Fprintf(sb, `<polygon points="%s" fill="%s"/>`, points(topFace), color)
}

func points(p []float64) string {
	parts := make([]string, 0, len(p)/2)
	for i := 0; i+1 < len(p); i += 2 {
		parts = append(parts, fmt.Sprintf("%.1f,%.1f", p[i], p[i+1]))
	}
	return strings.Join(parts, " ")
}

// shade scales a #rrggbb color by f.
func shade(hex string, f float64) string {
	if len(hex) != 7 || hex[0] != '#' {
		return hex
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return hex
	}
	r := float64(v>>16&0xff) * f
	g := float64(v>>8&0xff) * f
	b := float64(v&0xff) * f
	return fmt.Sprintf("#%02x%02x%02x", int(r), int(g), int(b))
}
