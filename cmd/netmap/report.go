package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/report"
	"github.com/user/netmap/internal/storage"
)

var (
	reportEntry  string
	reportLast   string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a network map report",
	Long: `Generate a Markdown report with a Mermaid topology diagram from the
recorded snapshots of an entry.

Examples:
  netmap report --entry home
  netmap report --entry home --last 7d
  netmap report --entry home --output -`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportEntry, "entry", "", "Entry ID (default: first configured entry)")
	reportCmd.Flags().StringVar(&reportLast, "last", "24h",
		"Time range for topology changes (e.g., 1h, 24h, 7d, 2w)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "",
		"Output file path, or - for stdout (default: auto-generated in the data dir)")
}

func runReport(cmd *cobra.Command, args []string) error {
	duration, err := parseDuration(reportLast)
	if err != nil {
		return fmt.Errorf("invalid time range: %w", err)
	}

	entryID := reportEntry
	if entryID == "" {
		entries, err := selectEntries("")
		if err != nil {
			return err
		}
		entryID = entries[0].ID
	}

	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	data, err := report.NewGenerator(db).Generate(entryID, time.Now().Add(-duration))
	if errors.Is(err, report.ErrNoSnapshot) {
		return fmt.Errorf("no snapshots recorded for %s yet", entryID)
	}
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	switch reportOutput {
	case "":
		path, err := report.WriteMarkdownFile(data, cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report saved to: %s\n", path)
	case "-":
		fmt.Println(report.FormatMarkdown(data))
		return nil
	default:
		if err := os.WriteFile(reportOutput, []byte(report.FormatMarkdown(data)), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report saved to: %s\n", reportOutput)
	}

	fmt.Println()
	fmt.Println("Report Summary:")
	fmt.Printf("  Nodes: %d\n", data.Latest.Nodes)
	fmt.Printf("  Links: %d\n", data.Latest.Edges)
	fmt.Printf("  Refreshes: %d\n", data.Refreshes)
	fmt.Printf("  Topology Changes: %d\n", len(data.Changes))

	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if len(s) > 0 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}

	if len(s) > 0 && s[len(s)-1] == 'w' {
		var weeks int
		if _, err := fmt.Sscanf(s, "%dw", &weeks); err == nil {
			return time.Duration(weeks) * 7 * 24 * time.Hour, nil
		}
	}

	return time.ParseDuration(s)
}
