package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FormatMarkdown renders the report as Markdown.
func FormatMarkdown(data *ReportData) string {
	var sb strings.Builder
	snap := data.Latest

	sb.WriteString(fmt.Sprintf("# Network Map Report: %s\n\n", data.EntryID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", data.GeneratedAt.Format("2006-01-02 15:04:05")))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Last refresh | %s |\n", snap.Timestamp.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("| Nodes | %d |\n", snap.Nodes))
	sb.WriteString(fmt.Sprintf("| Devices | %d |\n", snap.Devices))
	sb.WriteString(fmt.Sprintf("| Clients | %d |\n", snap.Clients))
	sb.WriteString(fmt.Sprintf("| Links | %d |\n", snap.Edges))
	sb.WriteString(fmt.Sprintf("| VLANs | %d |\n", snap.VLANs))
	sb.WriteString(fmt.Sprintf("| Refreshes since %s | %d |\n\n", data.Since.Format("2006-01-02 15:04"), data.Refreshes))

	p := snap.Payload
	if p == nil {
		return sb.String()
	}

	if diagram := GenerateTopologyDiagram(p); diagram != "" {
		sb.WriteString("## Topology\n\n")
		sb.WriteString(diagram)
		sb.WriteString("\n")
	}

	if len(p.VLANInfo) > 0 {
		sb.WriteString("## VLANs\n\n")
		sb.WriteString("| ID | Name | Clients | Sample |\n|---|---|---|---|\n")
		ids := make([]int, 0, len(p.VLANInfo))
		for id := range p.VLANInfo {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			v := p.VLANInfo[id]
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %s |\n", v.ID, cell(v.Name), v.ClientCount, cell(strings.Join(v.Clients, ", "))))
		}
		sb.WriteString("\n")
	}

	if len(p.APClientCounts) > 0 {
		sb.WriteString("## Access Points\n\n")
		sb.WriteString("| AP | Wireless clients |\n|---|---|\n")
		aps := make([]string, 0, len(p.APClientCounts))
		for name := range p.APClientCounts {
			aps = append(aps, name)
		}
		sort.Strings(aps)
		for _, name := range aps {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", cell(name), p.APClientCounts[name]))
		}
		sb.WriteString("\n")
	}

	if len(data.Changes) > 0 {
		sb.WriteString("## Topology Changes\n\n")
		for _, c := range data.Changes {
			sb.WriteString(fmt.Sprintf("- %s:", c.Timestamp.Format("2006-01-02 15:04")))
			if len(c.Added) > 0 {
				sb.WriteString(fmt.Sprintf(" added %s", strings.Join(c.Added, ", ")))
			}
			if len(c.Removed) > 0 {
				sb.WriteString(fmt.Sprintf(" removed %s", strings.Join(c.Removed, ", ")))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// WriteMarkdownFile writes the report into dir and returns its path.
func WriteMarkdownFile(data *ReportData, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	name := fmt.Sprintf("netmap_%s_%s.md", data.EntryID, data.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(FormatMarkdown(data)), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
