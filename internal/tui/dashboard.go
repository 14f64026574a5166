package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/netmap/internal/model"
)

// DashboardData holds data for the dashboard view.
type DashboardData struct {
	DaemonPID int
	Entries   []EntryInfo
}

// EntryInfo is the latest snapshot of one entry plus its live state, if known.
type EntryInfo struct {
	Snapshot  model.Snapshot
	State     string
	LastError string
}

// Dashboard is the main dashboard view.
type Dashboard struct {
	data     *DashboardData
	selected int
	width    int
	height   int
}

// NewDashboard creates a new dashboard.
func NewDashboard(data *DashboardData, width, height int) *Dashboard {
	return &Dashboard{
		data:   data,
		width:  width,
		height: height,
	}
}

// SetSize updates the dashboard size.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// SetData replaces the data, keeping the selection in range.
func (d *Dashboard) SetData(data *DashboardData) {
	d.data = data
	d.Move(0)
}

// Move shifts the selected entry by delta.
func (d *Dashboard) Move(delta int) {
	d.selected = min(max(d.selected+delta, 0), max(len(d.data.Entries)-1, 0))
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var sb strings.Builder

	sb.WriteString(HeaderStyle.Width(d.width).Render("UniFi Network Map"))
	sb.WriteString("\n\n")

	sb.WriteString(d.renderEntriesSection())
	sb.WriteString("\n")

	if len(d.data.Entries) > 0 {
		e := d.data.Entries[d.selected]
		sb.WriteString(d.renderVLANSection(e))
		sb.WriteString("\n")
		sb.WriteString(d.renderAPSection(e))
		sb.WriteString("\n")
	}

	sb.WriteString(HelpStyle.Render("↑/↓ select • 'r' to reload • 'q' to quit"))

	return sb.String()
}

func (d *Dashboard) sectionWidth() int {
	return max(d.width-4, 40)
}

func (d *Dashboard) renderEntriesSection() string {
	daemonLine := RenderStatus(d.data.DaemonPID != 0,
		fmt.Sprintf("daemon running (PID %d)", d.data.DaemonPID), "daemon not running")

	if len(d.data.Entries) == 0 {
		content := daemonLine + "\n" + DimStyle.Render("No snapshots recorded yet")
		return SectionStyle.Width(d.sectionWidth()).Render(
			SectionTitleStyle.Render("Entries") + "\n" + content)
	}

	rows := []string{daemonLine, ""}
	rows = append(rows, TableHeaderStyle.Render(fmt.Sprintf("%-16s %6s %6s %8s %8s %6s  %-19s %s",
		"Entry", "Nodes", "Links", "Devices", "Clients", "VLANs", "Last refresh", "State")))

	for i, e := range d.data.Entries {
		s := e.Snapshot
		row := fmt.Sprintf("%-16s %6d %6d %8d %8d %6d  %-19s %s",
			truncate(s.EntryID, 16), s.Nodes, s.Edges, s.Devices, s.Clients, s.VLANs,
			s.Timestamp.Local().Format("2006-01-02 15:04:05"), renderState(e))
		style := TableRowStyle
		if i%2 == 1 {
			style = TableRowAltStyle
		}
		if i == d.selected {
			style = SelectedRowStyle
		}
		rows = append(rows, style.Render(row))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Entries") + "\n" + strings.Join(rows, "\n"))
}

func renderState(e EntryInfo) string {
	switch {
	case e.State == "":
		return DimStyle.Render("unknown")
	case e.LastError != "":
		return WarningStyle.Render(truncate(e.LastError, 30))
	default:
		return SuccessStyle.Render(e.State)
	}
}

func (d *Dashboard) renderVLANSection(e EntryInfo) string {
	title := SectionTitleStyle.Render("VLANs: " + e.Snapshot.EntryID)
	p := e.Snapshot.Payload
	if p == nil || len(p.VLANInfo) == 0 {
		return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + DimStyle.Render("No VLANs"))
	}

	ids := make([]int, 0, len(p.VLANInfo))
	for id := range p.VLANInfo {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := []string{fmt.Sprintf("%-6s %-20s %s", "ID", "Name", "Clients")}
	rows = append(rows, strings.Repeat("─", 40))
	for _, id := range ids {
		v := p.VLANInfo[id]
		rows = append(rows, fmt.Sprintf("%-6d %-20s %s", v.ID,
			truncate(v.Name, 20), ValueStyle.Render(fmt.Sprintf("%d", v.ClientCount))))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + strings.Join(rows, "\n"))
}

func (d *Dashboard) renderAPSection(e EntryInfo) string {
	title := SectionTitleStyle.Render("Access Points")
	p := e.Snapshot.Payload
	if p == nil || len(p.APClientCounts) == 0 {
		return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + DimStyle.Render("No access points"))
	}

	names := make([]string, 0, len(p.APClientCounts))
	peak := 0
	for name, n := range p.APClientCounts {
		names = append(names, name)
		peak = max(peak, n)
	}
	sort.Strings(names)

	maxAPs := min(len(names), 10)
	rows := make([]string, 0, maxAPs+1)
	for _, name := range names[:maxAPs] {
		n := p.APClientCounts[name]
		rows = append(rows, fmt.Sprintf("%s %s %d",
			LabelStyle.Render(truncate(name, 13)), RenderBar(n, peak, 20), n))
	}
	if len(names) > maxAPs {
		rows = append(rows, DimStyle.Render(fmt.Sprintf("... and %d more", len(names)-maxAPs)))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + strings.Join(rows, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
