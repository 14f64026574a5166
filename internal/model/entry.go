// Package model defines core data structures for netmap.
package model

import (
	"strings"
	"time"
)

// ClientScope selects which clients are linked into the topology.
type ClientScope string

const (
	ScopeWired    ClientScope = "wired"
	ScopeWireless ClientScope = "wireless"
	ScopeAll      ClientScope = "all"
)

// ParseClientScope returns the scope named by s, defaulting to wired.
func ParseClientScope(s string) ClientScope {
	switch ClientScope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeWireless:
		return ScopeWireless
	case ScopeAll:
		return ScopeAll
	default:
		return ScopeWired
	}
}

// Option bounds.
const (
	DefaultScanInterval    = 10
	MinScanInterval        = 1
	MaxScanInterval        = 60
	DefaultRequestTimeout  = 30
	MinRequestTimeout      = 5
	MaxRequestTimeout      = 120
	DefaultPayloadCacheTTL = 30
	MaxPayloadCacheTTL     = 3600
)

// Entry identifies one UniFi controller.
type Entry struct {
	ID        string
	BaseURL   string
	Username  string
	Password  string
	Site      string
	VerifySSL bool
	Options   Options
}

// Options are the per-entry tunables.
type Options struct {
	ScanInterval          int    `mapstructure:"scan_interval" json:"scan_interval"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
	PayloadCacheTTL       int    `mapstructure:"payload_cache_ttl" json:"payload_cache_ttl"`
	IncludePorts          bool   `mapstructure:"include_ports" json:"include_ports"`
	IncludeClients        bool   `mapstructure:"include_clients" json:"include_clients"`
	ClientScope           string `mapstructure:"client_scope" json:"client_scope"`
	OnlyUniFi             bool   `mapstructure:"only_unifi" json:"only_unifi"`
	SVGIsometric          bool   `mapstructure:"svg_isometric" json:"svg_isometric"`
	SVGWidth              *int   `mapstructure:"svg_width" json:"svg_width,omitempty"`
	SVGHeight             *int   `mapstructure:"svg_height" json:"svg_height,omitempty"`
	UseCache              bool   `mapstructure:"use_cache" json:"use_cache"`
	TrackedClients        string `mapstructure:"tracked_clients" json:"tracked_clients"`
	SVGTheme              string `mapstructure:"svg_theme" json:"svg_theme,omitempty"`
	IconSet               string `mapstructure:"icon_set" json:"icon_set,omitempty"`
	ShowWAN               bool   `mapstructure:"show_wan" json:"show_wan"`
	WANLabel              string `mapstructure:"wan_label" json:"wan_label,omitempty"`
	WAN2Label             string `mapstructure:"wan2_label" json:"wan2_label,omitempty"`
	WANSpeed              string `mapstructure:"wan_speed" json:"wan_speed,omitempty"`
	WAN2Speed             string `mapstructure:"wan2_speed" json:"wan2_speed,omitempty"`
	WAN2Disabled          string `mapstructure:"wan2_disabled" json:"wan2_disabled,omitempty"`
}

// DefaultOptions returns the option defaults.
func DefaultOptions() Options {
	return Options{
		ScanInterval:          DefaultScanInterval,
		RequestTimeoutSeconds: DefaultRequestTimeout,
		PayloadCacheTTL:       DefaultPayloadCacheTTL,
		ClientScope:           string(ScopeWired),
		SVGTheme:              "unifi",
		IconSet:               "modern",
		ShowWAN:               true,
		WAN2Disabled:          "auto",
	}
}

// Normalized clamps every bounded option.
func (o Options) Normalized() Options {
	o.ScanInterval = clamp(o.ScanInterval, MinScanInterval, MaxScanInterval)
	o.RequestTimeoutSeconds = clamp(o.RequestTimeoutSeconds, MinRequestTimeout, MaxRequestTimeout)
	o.PayloadCacheTTL = clamp(o.PayloadCacheTTL, 0, MaxPayloadCacheTTL)
	o.ClientScope = string(ParseClientScope(o.ClientScope))
	switch strings.ToLower(o.WAN2Disabled) {
	case "true", "false":
		o.WAN2Disabled = strings.ToLower(o.WAN2Disabled)
	default:
		o.WAN2Disabled = "auto"
	}
	return o
}

// ScanIntervalDuration returns the poll interval.
func (o Options) ScanIntervalDuration() time.Duration {
	return time.Duration(clamp(o.ScanInterval, MinScanInterval, MaxScanInterval)) * time.Minute
}

// RequestTimeout returns the per-request adapter timeout; zero disables it.
func (o Options) RequestTimeout() time.Duration {
	if o.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(o.RequestTimeoutSeconds) * time.Second
}

// TrackedMACs parses tracked_clients into canonical MACs, dropping invalid lines.
func (o Options) TrackedMACs() []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.FieldsFunc(o.TrackedClients, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	}) {
		mac := NormalizeMAC(line)
		if mac == "" || seen[mac] {
			continue
		}
		seen[mac] = true
		out = append(out, mac)
	}
	return out
}

// RenderSettings derives the immutable per-refresh settings.
func (o Options) RenderSettings() RenderSettings {
	return RenderSettings{
		IncludePorts:   o.IncludePorts,
		IncludeClients: o.IncludeClients,
		ClientScope:    ParseClientScope(o.ClientScope),
		OnlyUniFi:      o.OnlyUniFi,
		SVGIsometric:   o.SVGIsometric,
		SVGWidth:       o.SVGWidth,
		SVGHeight:      o.SVGHeight,
		UseCache:       o.UseCache,
		SVGTheme:       o.SVGTheme,
		IconSet:        o.IconSet,
		ShowWAN:        o.ShowWAN,
		WANLabel:       o.WANLabel,
		WAN2Label:      o.WAN2Label,
		WANSpeed:       o.WANSpeed,
		WAN2Speed:      o.WAN2Speed,
		WAN2Disabled:   o.WAN2Disabled,
	}
}

// RenderSettings are the options a single render pass reads.
type RenderSettings struct {
	IncludePorts   bool
	IncludeClients bool
	ClientScope    ClientScope
	OnlyUniFi      bool
	SVGIsometric   bool
	SVGWidth       *int
	SVGHeight      *int
	UseCache       bool
	SVGTheme       string
	IconSet        string
	ShowWAN        bool
	WANLabel       string
	WAN2Label      string
	WANSpeed       string
	WAN2Speed      string
	WAN2Disabled   string
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
