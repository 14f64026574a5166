package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/user/netmap/internal/model"
)

// Options size the output document. Nil dimensions use the natural size.
type Options struct {
	Width   *int
	Height  *int
	Theme   string
	IconSet string
}

type node struct {
	name string
	typ  string
	row  int
	col  int
	x, y float64
}

type layout struct {
	nodes   []*node
	byName  map[string]*node
	rows    int
	maxCols int
}

// buildLayout assigns each node a row by breadth-first depth from the roots.
// Gateways come first, then nodes nothing points at, then the rest.
func buildLayout(edges []model.Edge, nodeTypes map[string]model.NodeType) *layout {
	typeOf := func(n string) string {
		if t, ok := nodeTypes[n]; ok {
			return string(t)
		}
		return string(model.NodeOther)
	}

	names := make(map[string]bool)
	for n := range nodeTypes {
		names[n] = true
	}
	children := make(map[string][]string)
	incoming := make(map[string]bool)
	for _, e := range edges {
		names[e.Left] = true
		names[e.Right] = true
		children[e.Left] = append(children[e.Left], e.Right)
		incoming[e.Right] = true
	}

	all := make([]string, 0, len(names))
	for n := range names {
		all = append(all, n)
	}
	sort.Strings(all)

	var roots []string
	for _, n := range all {
		if typeOf(n) == string(model.NodeGateway) {
			roots = append(roots, n)
		}
	}
	for _, n := range all {
		if !incoming[n] {
			roots = append(roots, n)
		}
	}
	roots = append(roots, all...)

	l := &layout{byName: make(map[string]*node, len(all))}
	rowSizes := make(map[int]int)
	place := func(name string, row int) {
		n := &node{name: name, typ: typeOf(name), row: row, col: rowSizes[row]}
		rowSizes[row]++
		l.byName[name] = n
		l.nodes = append(l.nodes, n)
		if row+1 > l.rows {
			l.rows = row + 1
		}
		if rowSizes[row] > l.maxCols {
			l.maxCols = rowSizes[row]
		}
	}

	for _, root := range roots {
		if _, done := l.byName[root]; done {
			continue
		}
		place(root, 0)
		queue := []string{root}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			kids := append([]string(nil), children[cur]...)
			sort.Strings(kids)
			for _, k := range kids {
				if _, done := l.byName[k]; done {
					continue
				}
				place(k, l.byName[cur].row+1)
				queue = append(queue, k)
			}
		}
	}
	return l
}

const (
	colWidth   = 170.0
	rowHeight  = 130.0
	margin     = 40.0
	headerSize = 64.0
	nodeWidth  = 130.0
	nodeHeight = 60.0
)

// position lays nodes out on a grid, centering short rows.
func (l *layout) position(top float64) (width, height float64) {
	rowLen := make(map[int]int)
	for _, n := range l.nodes {
		rowLen[n.row]++
	}
	for _, n := range l.nodes {
		offset := float64(l.maxCols-rowLen[n.row]) * colWidth / 2
		n.x = margin + offset + colWidth*(float64(n.col)+0.5)
		n.y = top + margin + rowHeight*(float64(n.row)+0.5)
	}
	width = 2*margin + colWidth*float64(max(l.maxCols, 2))
	height = top + 2*margin + rowHeight*float64(max(l.rows, 1))
	return width, height
}

func openDocument(sb *strings.Builder, natW, natH float64, opts Options, t Theme) {
	w := strconv.FormatFloat(natW, 'f', 0, 64)
	h := strconv.FormatFloat(natH, 'f', 0, 64)
	if opts.Width != nil && *opts.Width > 0 {
		w = strconv.Itoa(*opts.Width)
	}
	if opts.Height != nil && *opts.Height > 0 {
		h = strconv.Itoa(*opts.Height)
	}
	fmt.Fprintf(sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %.0f %.0f" font-family="-apple-system, Segoe UI, Roboto, sans-serif" data-theme="%s">`,
		w, h, natW, natH, t.Name)
	fmt.Fprintf(sb, `<rect width="100%%" height="100%%" fill="%s"/>`, t.Background)
}

func writeHeader(sb *strings.Builder, width float64, t Theme, wan *model.WanInfo) {
	fmt.Fprintf(sb, `<g class="wan"><rect x="0" y="0" width="%.0f" height="%.0f" fill="%s"/>`, width, headerSize, t.HeaderFill)
	x := margin
	for _, link := range []*model.WanLink{wan.WAN1, wan.WAN2} {
		if link == nil {
			continue
		}
		status, color := "down", t.MutedText
		switch {
		case link.Disabled:
			status = "disabled"
		case link.Up:
			status, color = "up", t.Nodes["switch"]
		}
		fmt.Fprintf(sb, `<circle cx="%.1f" cy="26" r="5" fill="%s"/>`, x, color)
		fmt.Fprintf(sb, `<text x="%.1f" y="30" font-size="13" font-weight="600" fill="%s">%s</text>`, x+12, t.Text, esc(link.Label))
		detail := []string{status}
		if link.IP != "" {
			detail = append(detail, link.IP)
		}
		if link.Speed != "" {
			detail = append(detail, link.Speed)
		}
		fmt.Fprintf(sb, `<text x="%.1f" y="48" font-size="11" fill="%s">%s</text>`, x+12, t.MutedText, esc(strings.Join(detail, " · ")))
		x += 260
	}
	sb.WriteString(`</g>`)
}

func hasWan(wan *model.WanInfo) bool {
	return wan != nil && (wan.WAN1 != nil || wan.WAN2 != nil)
}

func edgeStyle(e model.Edge, t Theme) (color, dash string) {
	switch {
	case e.Wireless:
		return t.EdgeWireless, ` stroke-dasharray="6 4"`
	case e.PoE:
		return t.EdgePoE, ""
	default:
		return t.Edge, ""
	}
}

func edgeLabel(e model.Edge) string {
	var parts []string
	if e.Label != "" {
		parts = append(parts, e.Label)
	}
	if e.Wireless && e.Channel != nil {
		parts = append(parts, fmt.Sprintf("ch %d", *e.Channel))
	}
	if e.PoE {
		parts = append(parts, "PoE")
	}
	return strings.Join(parts, " · ")
}

func esc(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
