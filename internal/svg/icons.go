package svg

import (
	"fmt"
	"strings"
)

// DefaultIconSet is used when no icon set or an unknown one is requested.
const DefaultIconSet = "modern"

// icon draws the glyph for a node type centered at (cx, cy).
type icon func(sb *strings.Builder, cx, cy float64, color string)

var iconSets = map[string]map[string]icon{
	"modern": {
		"gateway": func(sb *strings.Builder, cx, cy float64, c string) {
			fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="22" height="10" rx="3" fill="none" stroke="%s" stroke-width="2"/>`, cx-11, cy-5, c)
			fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="1.5" fill="%s"/>`, cx+6, cy, c)
		},
		"switch": func(sb *strings.Builder, cx, cy float64, c string) {
			fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="24" height="8" rx="2" fill="none" stroke="%s" stroke-width="2"/>`, cx-12, cy-4, c)
			for i := 0; i < 4; i++ {
				fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="3" height="3" fill="%s"/>`, cx-9+float64(i)*5, cy-1.5, c)
			}
		},
		"ap": func(sb *strings.Builder, cx, cy float64, c string) {
			fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="9" fill="none" stroke="%s" stroke-width="2"/>`, cx, cy, c)
			fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="2.5" fill="%s"/>`, cx, cy, c)
		},
		"client": func(sb *strings.Builder, cx, cy float64, c string) {
			fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="16" height="11" rx="1.5" fill="none" stroke="%s" stroke-width="2"/>`, cx-8, cy-7, c)
			fmt.Fprintf(sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"/>`, cx-10, cy+7, cx+10, cy+7, c)
		},
		"other": func(sb *strings.Builder, cx, cy float64, c string) {
			fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="7" fill="none" stroke="%s" stroke-width="2"/>`, cx, cy, c)
		},
	},
	"classic": {
		"gateway": letterIcon("G"),
		"switch":  letterIcon("S"),
		"ap":      letterIcon("AP"),
		"client":  letterIcon("C"),
		"other":   letterIcon("?"),
	},
}

func letterIcon(letter string) icon {
	return func(sb *strings.Builder, cx, cy float64, c string) {
		fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="middle" font-size="12" font-weight="bold" fill="%s">%s</text>`, cx, cy+4, c, letter)
	}
}

// IconSetNames lists the available icon sets.
func IconSetNames() []string {
	return []string{"modern", "classic"}
}

// KnownIconSet reports whether name is an available icon set.
func KnownIconSet(name string) bool {
	_, ok := iconSets[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func lookupIcon(set, typ string) icon {
	icons, ok := iconSets[strings.ToLower(strings.TrimSpace(set))]
	if !ok {
		icons = iconSets[DefaultIconSet]
	}
	if ic, ok := icons[typ]; ok {
		return ic
	}
	return icons["other"]
}
