package unifi

import (
	"fmt"
	"strings"

	"github.com/user/netmap/internal/model"
)

// modelNames maps controller model codes to marketing names.
var modelNames = map[string]string{
	"UDM":      "UniFi Dream Machine",
	"UDMPRO":   "UniFi Dream Machine Pro",
	"UDMPROSE": "UniFi Dream Machine SE",
	"UDR":      "UniFi Dream Router",
	"UCGMAX":   "UniFi Cloud Gateway Max",
	"UXG":      "UniFi Next-Gen Gateway Lite",
	"UGW3":     "UniFi Security Gateway",
	"UGW4":     "UniFi Security Gateway Pro",
	"US8P60":   "UniFi Switch 8 PoE (60W)",
	"US8P150":  "UniFi Switch 8 PoE (150W)",
	"US16P150": "UniFi Switch 16 PoE",
	"US24P250": "UniFi Switch 24 PoE",
	"USMINI":   "UniFi Switch Flex Mini",
	"USL8LP":   "UniFi Switch Lite 8 PoE",
	"USL16LP":  "UniFi Switch Lite 16 PoE",
	"USF5P":    "UniFi Switch Flex",
	"U7PG2":    "UniFi AP AC Pro",
	"U7LT":     "UniFi AP AC Lite",
	"U7NHD":    "UniFi AP nanoHD",
	"UAL6":     "UniFi U6 Lite",
	"UALR6v2":  "UniFi U6 Long-Range",
	"U6M":      "UniFi U6 Mesh",
	"UAP6MP":   "UniFi U6 Pro",
	"U7PRO":    "UniFi U7 Pro",
}

// ModelName returns the marketing name for a model code.
func ModelName(code string) string {
	return modelNames[code]
}

// DeviceType classifies the controller's device type string.
func DeviceType(t string) model.NodeType {
	switch strings.ToLower(t) {
	case "ugw", "udm", "uxg", "ucg":
		return model.NodeGateway
	case "usw":
		return model.NodeSwitch
	case "uap":
		return model.NodeAP
	default:
		return model.NodeOther
	}
}

// ParseDevice normalizes a stat/device record.
func ParseDevice(r Record) (model.Device, error) {
	var d model.Device

	mac, err := r.String("mac")
	if err != nil {
		return d, err
	}
	d.MAC = model.NormalizeMAC(mac)
	if d.MAC == "" {
		return d, &FieldError{Field: "mac", Value: mac, Want: "MAC address"}
	}

	name, err := r.String("name")
	if err != nil {
		return d, err
	}
	if name == "" {
		if name, err = r.String("hostname"); err != nil {
			return d, err
		}
	}
	if name == "" {
		name = d.MAC
	}
	d.Name = name

	if d.IP, err = r.String("ip"); err != nil {
		return d, err
	}
	if d.Model, err = r.String("model"); err != nil {
		return d, err
	}
	if d.ModelName, err = r.String("model_name"); err != nil {
		return d, err
	}
	if d.ModelName == "" {
		d.ModelName = ModelName(d.Model)
	}

	typ, err := r.String("type")
	if err != nil {
		return d, err
	}
	d.Type = DeviceType(typ)

	if d.Uplink, err = parseUplink(r); err != nil {
		return d, err
	}

	ports, err := r.List("port_table")
	if err != nil {
		return d, err
	}
	for _, p := range ports {
		port, err := parsePort(p)
		if err != nil {
			return d, fmt.Errorf("port_table: %w", err)
		}
		d.PortTable = append(d.PortTable, port)
	}

	if d.Type == model.NodeGateway {
		if d.WAN1, err = r.Map("wan1"); err != nil {
			return d, err
		}
		if d.WAN2, err = r.Map("wan2"); err != nil {
			return d, err
		}
	}
	return d, nil
}

func parseUplink(r Record) (*model.Uplink, error) {
	up, err := r.Map("uplink")
	if err != nil {
		return nil, err
	}
	if up == nil {
		if up, err = r.Map("last_uplink"); err != nil || up == nil {
			return nil, err
		}
	}

	raw, err := up.String("uplink_mac")
	if err != nil {
		return nil, err
	}
	mac := model.NormalizeMAC(raw)
	if mac == "" {
		return nil, nil
	}

	u := &model.Uplink{MAC: mac}
	if u.Name, err = up.String("uplink_device_name"); err != nil {
		return nil, err
	}
	if u.RemotePort, err = up.Int("uplink_remote_port"); err != nil {
		return nil, err
	}
	if u.Speed, err = up.Int("speed"); err != nil {
		return nil, err
	}
	typ, err := up.String("type")
	if err != nil {
		return nil, err
	}
	u.Wireless = typ == "wireless"
	if u.Wireless {
		if u.Channel, err = up.Int("channel"); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func parsePort(r Record) (model.Port, error) {
	var p model.Port
	var err error
	if p.PortIdx, err = r.Int("port_idx"); err != nil {
		return p, err
	}
	if p.Name, err = r.String("name"); err != nil {
		return p, err
	}
	if p.Speed, err = r.Int("speed"); err != nil {
		return p, err
	}
	if p.PoEEnable, err = r.Flag("poe_enable"); err != nil {
		return p, err
	}
	if p.PoEGood, err = r.Flag("poe_good"); err != nil {
		return p, err
	}
	if p.PoEPower, err = r.Float("poe_power"); err != nil {
		return p, err
	}
	return p, nil
}

// ParseClient normalizes a stat/sta record.
func ParseClient(r Record) (model.Client, error) {
	var c model.Client
	var err error

	mac, err := r.String("mac")
	if err != nil {
		return c, err
	}
	c.MAC = model.NormalizeMAC(mac)
	if c.MAC == "" {
		return c, &FieldError{Field: "mac", Value: mac, Want: "MAC address"}
	}
	if c.Name, err = r.String("name"); err != nil {
		return c, err
	}
	if c.Hostname, err = r.String("hostname"); err != nil {
		return c, err
	}
	if c.IP, err = r.String("ip"); err != nil {
		return c, err
	}
	if c.VLAN, err = r.Int("vlan"); err != nil {
		return c, err
	}
	if c.NetworkName, err = r.String("network"); err != nil {
		return c, err
	}
	if c.IsWired, err = r.Bool("is_wired"); err != nil {
		return c, err
	}
	ap, err := r.String("ap_mac")
	if err != nil {
		return c, err
	}
	c.APMAC = model.NormalizeMAC(ap)
	sw, err := r.String("sw_mac")
	if err != nil {
		return c, err
	}
	c.SWMAC = model.NormalizeMAC(sw)
	if c.SWPort, err = r.Int("sw_port"); err != nil {
		return c, err
	}
	if c.Channel, err = r.Int("channel"); err != nil {
		return c, err
	}
	return c, nil
}

// ParseNetwork normalizes a rest/networkconf record.
func ParseNetwork(r Record) (model.Network, error) {
	var n model.Network
	var err error
	if n.Name, err = r.String("name"); err != nil {
		return n, err
	}
	if n.Purpose, err = r.String("purpose"); err != nil {
		return n, err
	}
	if n.VLAN, err = r.Int("vlan"); err != nil {
		return n, err
	}
	return n, nil
}

// ExtractWanInfo reads WAN1/WAN2 from the gateway and applies the overrides.
// Empty override strings leave the controller values in place.
func ExtractWanInfo(gateway model.Device, o model.WanOverrides) (*model.WanInfo, error) {
	wan1, err := parseWan(Record(gateway.WAN1), "WAN", o.WANLabel, o.WANSpeed)
	if err != nil {
		return nil, fmt.Errorf("wan1: %w", err)
	}
	wan2, err := parseWan(Record(gateway.WAN2), "WAN2", o.WAN2Label, o.WAN2Speed)
	if err != nil {
		return nil, fmt.Errorf("wan2: %w", err)
	}

	switch strings.ToLower(o.WAN2Disabled) {
	case "true":
		if wan2 == nil {
			wan2 = &model.WanLink{Label: labelOr(o.WAN2Label, "WAN2")}
		}
		wan2.Disabled = true
	case "false":
		if wan2 != nil {
			wan2.Disabled = false
		}
	}

	if wan1 == nil && wan2 == nil {
		return nil, nil
	}
	return &model.WanInfo{WAN1: wan1, WAN2: wan2}, nil
}

func parseWan(r Record, defLabel, labelOverride, speedOverride string) (*model.WanLink, error) {
	if r == nil {
		return nil, nil
	}
	w := &model.WanLink{}

	name, err := r.String("name")
	if err != nil {
		return nil, err
	}
	w.Label = labelOr(labelOverride, labelOr(name, defLabel))

	if w.IP, err = r.String("ip"); err != nil {
		return nil, err
	}
	if w.Up, err = r.Flag("up"); err != nil {
		return nil, err
	}
	enabled, err := r.Bool("enable")
	if err != nil {
		return nil, err
	}
	w.Disabled = enabled != nil && !*enabled

	if speedOverride != "" {
		w.Speed = speedOverride
	} else {
		speed, err := r.Int("speed")
		if err != nil {
			return nil, err
		}
		if speed != nil && *speed > 0 {
			w.Speed = FormatSpeed(*speed)
		}
	}

	if rx, err := r.Float("rx_bytes-r"); err != nil {
		return nil, err
	} else if rx != nil {
		w.RxRate = *rx
	}
	if tx, err := r.Float("tx_bytes-r"); err != nil {
		return nil, err
	} else if tx != nil {
		w.TxRate = *tx
	}
	return w, nil
}

// FormatSpeed renders a link speed given in Mbps.
func FormatSpeed(mbps int) string {
	if mbps >= 1000 && mbps%1000 == 0 {
		return fmt.Sprintf("%d Gbps", mbps/1000)
	}
	if mbps >= 1000 {
		return fmt.Sprintf("%.1f Gbps", float64(mbps)/1000)
	}
	return fmt.Sprintf("%d Mbps", mbps)
}

func labelOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
