// Package svg draws the topology as a standalone SVG document.
package svg

import "strings"

// Theme is a color scheme for the diagram.
type Theme struct {
	Name         string
	Background   string
	Text         string
	MutedText    string
	Edge         string
	EdgeWireless string
	EdgePoE      string
	NodeStroke   string
	HeaderFill   string
	Nodes        map[string]string
}

// DefaultTheme is used when no theme or an unknown theme is requested.
const DefaultTheme = "unifi"

var themes = map[string]Theme{
	"unifi": {
		Name: "unifi", Background: "#ffffff", Text: "#1d1f24", MutedText: "#6b7280",
		Edge: "#9aa4b2", EdgeWireless: "#4797ff", EdgePoE: "#f5a524",
		NodeStroke: "#d6dbe2", HeaderFill: "#f4f6f8",
		Nodes: map[string]string{
			"gateway": "#006fff", "switch": "#1eb980", "ap": "#7a5af8",
			"client": "#c3cad5", "other": "#b0b7c3",
		},
	},
	"unifi-dark": {
		Name: "unifi-dark", Background: "#1a1c21", Text: "#e7e9ee", MutedText: "#9aa1ad",
		Edge: "#4b5260", EdgeWireless: "#4797ff", EdgePoE: "#f5a524",
		NodeStroke: "#2d313a", HeaderFill: "#23262d",
		Nodes: map[string]string{
			"gateway": "#2f86ff", "switch": "#23c48e", "ap": "#8f74ff",
			"client": "#5b6270", "other": "#6b7280",
		},
	},
	"minimal": {
		Name: "minimal", Background: "#fafafa", Text: "#222222", MutedText: "#777777",
		Edge: "#bbbbbb", EdgeWireless: "#888888", EdgePoE: "#555555",
		NodeStroke: "#dddddd", HeaderFill: "#f0f0f0",
		Nodes: map[string]string{
			"gateway": "#444444", "switch": "#666666", "ap": "#888888",
			"client": "#cccccc", "other": "#aaaaaa",
		},
	},
	"minimal-dark": {
		Name: "minimal-dark", Background: "#121212", Text: "#eeeeee", MutedText: "#999999",
		Edge: "#444444", EdgeWireless: "#777777", EdgePoE: "#aaaaaa",
		NodeStroke: "#2a2a2a", HeaderFill: "#1b1b1b",
		Nodes: map[string]string{
			"gateway": "#dddddd", "switch": "#bbbbbb", "ap": "#999999",
			"client": "#555555", "other": "#666666",
		},
	},
	"dark": {
		Name: "dark", Background: "#0f172a", Text: "#e2e8f0", MutedText: "#94a3b8",
		Edge: "#334155", EdgeWireless: "#38bdf8", EdgePoE: "#facc15",
		NodeStroke: "#1e293b", HeaderFill: "#111c33",
		Nodes: map[string]string{
			"gateway": "#3b82f6", "switch": "#10b981", "ap": "#a855f7",
			"client": "#475569", "other": "#64748b",
		},
	},
	"light": {
		Name: "light", Background: "#f8fafc", Text: "#0f172a", MutedText: "#64748b",
		Edge: "#cbd5e1", EdgeWireless: "#0ea5e9", EdgePoE: "#eab308",
		NodeStroke: "#e2e8f0", HeaderFill: "#eef2f7",
		Nodes: map[string]string{
			"gateway": "#2563eb", "switch": "#059669", "ap": "#9333ea",
			"client": "#94a3b8", "other": "#a1a1aa",
		},
	},
}

// LookupTheme returns the named theme and whether it exists.
// Unknown names resolve to the default theme.
func LookupTheme(name string) (Theme, bool) {
	t, ok := themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return themes[DefaultTheme], false
	}
	return t, true
}

// ThemeBackground returns the background color of the named theme.
func ThemeBackground(name string) string {
	t, _ := LookupTheme(name)
	return t.Background
}

// ThemeNames lists the available themes.
func ThemeNames() []string {
	return []string{"unifi", "unifi-dark", "minimal", "minimal-dark", "dark", "light"}
}

func (t Theme) nodeColor(typ string) string {
	if c, ok := t.Nodes[typ]; ok {
		return c
	}
	return t.Nodes["other"]
}
