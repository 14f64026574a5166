package svg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/model"
)

func sampleGraph() ([]model.Edge, map[string]model.NodeType) {
	ch := 36
	edges := []model.Edge{
		{Left: "Gateway", Right: "Switch", Label: "Port 1", PoE: true},
		{Left: "Switch", Right: "Office AP"},
		{Left: "Office AP", Right: "Laptop <1>", Wireless: true, Channel: &ch},
	}
	types := map[string]model.NodeType{
		"Gateway":    model.NodeGateway,
		"Switch":     model.NodeSwitch,
		"Office AP":  model.NodeAP,
		"Laptop <1>": model.NodeClient,
		"Spare":      model.NodeSwitch,
	}
	return edges, types
}

func TestRenderers(t *testing.T) {
	edges, types := sampleGraph()
	w := 800

	tests := map[string]func([]model.Edge, map[string]model.NodeType, Options, *model.WanInfo) string{
		"flat":      RenderFlat,
		"isometric": RenderIsometric,
	}

	for name, render := range tests {
		t.Run(name, func(t *testing.T) {
			out := render(edges, types, Options{Width: &w, Theme: "dark"}, nil)
			require.True(t, strings.HasPrefix(out, "<svg"))
			assert.True(t, strings.HasSuffix(out, "</svg>"))
			assert.Contains(t, out, `width="800"`)
			assert.Contains(t, out, ThemeBackground("dark"))
			assert.Contains(t, out, "Laptop &lt;1&gt;")
			assert.Contains(t, out, `data-name="Spare"`)
			assert.Contains(t, out, "stroke-dasharray")
		})
	}
}

func TestRenderFlat_ThemeChangesOutput(t *testing.T) {
	edges, types := sampleGraph()
	a := RenderFlat(edges, types, Options{Theme: "unifi"}, nil)
	b := RenderFlat(edges, types, Options{Theme: "dark"}, nil)
	assert.NotEqual(t, a, b)

	// deterministic for identical input
	assert.Equal(t, a, RenderFlat(edges, types, Options{Theme: "unifi"}, nil))
}

func TestRenderFlat_WanHeader(t *testing.T) {
	edges, types := sampleGraph()
	wan := &model.WanInfo{
		WAN1: &model.WanLink{Label: "Fiber", IP: "1.2.3.4", Up: true, Speed: "1 Gbps"},
		WAN2: &model.WanLink{Label: "LTE", Disabled: true},
	}
	out := RenderFlat(edges, types, Options{}, wan)
	assert.Contains(t, out, `class="wan"`)
	assert.Contains(t, out, "Fiber")
	assert.Contains(t, out, "disabled")
}

func TestRenderFlat_Empty(t *testing.T) {
	out := RenderFlat(nil, nil, Options{}, nil)
	assert.True(t, strings.HasPrefix(out, "<svg"))
}

func TestLookupTheme(t *testing.T) {
	for _, name := range ThemeNames() {
		th, ok := LookupTheme(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, th.Name)
	}

	th, ok := LookupTheme("nope")
	assert.False(t, ok)
	assert.Equal(t, DefaultTheme, th.Name)
	assert.Equal(t, ThemeBackground(DefaultTheme), ThemeBackground(""))
}

func TestIconSets(t *testing.T) {
	edges, types := sampleGraph()
	classic := RenderFlat(edges, types, Options{IconSet: "classic"}, nil)
	modern := RenderFlat(edges, types, Options{IconSet: "modern"}, nil)
	assert.NotEqual(t, classic, modern)
	assert.True(t, KnownIconSet("Classic"))
	assert.False(t, KnownIconSet("retro"))
}

func TestShade(t *testing.T) {
	assert.Equal(t, "#7f7f7f", shade("#ffffff", 0.5))
	assert.Equal(t, "red", shade("red", 0.5))
}
