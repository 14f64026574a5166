package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/daemon"
	"github.com/user/netmap/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Show the current status of the netmap daemon, its entries and the latest snapshots.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	runningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	stoppedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	running, pid := daemon.CheckRunning(cfg.DataDir)

	fmt.Println(titleStyle.Render("netmap Status"))
	fmt.Println()

	fmt.Print(labelStyle.Render("Daemon: "))
	if running {
		fmt.Println(runningStyle.Render(fmt.Sprintf("Running (PID %d)", pid)))
	} else {
		fmt.Println(stoppedStyle.Render("Stopped"))
	}

	if sf, err := daemon.ReadStatusFile(cfg.DataDir); err == nil && running {
		fmt.Print(labelStyle.Render("Started: "))
		fmt.Println(valueStyle.Render(sf.StartTime))

		fmt.Print(labelStyle.Render("Uptime: "))
		fmt.Println(valueStyle.Render(sf.Uptime))

		if len(sf.Entries) > 0 {
			fmt.Println()
			fmt.Println(titleStyle.Render("Entries"))

			for _, e := range sf.Entries {
				state := runningStyle.Render(e.State)
				if e.LastError != "" {
					state = stoppedStyle.Render(e.LastError)
				}
				fmt.Printf("  %s: %s (%d nodes, %d links, updated %s)\n",
					labelStyle.Render(e.ID), state, e.Nodes, e.Edges,
					e.LastUpdate.Local().Format("15:04:05"))
				if !e.BackoffUntil.IsZero() {
					fmt.Printf("    %s %s\n", labelStyle.Render("auth backoff until"),
						valueStyle.Render(e.BackoffUntil.Local().Format("15:04:05")))
				}
			}
		}

		if len(sf.Jobs) > 0 {
			fmt.Println()
			fmt.Println(titleStyle.Render("Jobs"))

			for _, job := range sf.Jobs {
				statusStr := "idle"
				if job.Running {
					statusStr = "running"
				}
				fmt.Printf("  %s: %s (last: %s, errors: %d)\n",
					labelStyle.Render(job.Name),
					valueStyle.Render(statusStr),
					job.LastRun.Format("15:04:05"),
					job.ErrorCount)
			}
		}
	}

	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return nil
	}
	defer db.Close()

	snaps := storage.NewSnapshotStorage(db)
	latest, err := snaps.LatestPerEntry()
	if err != nil || len(latest) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println(titleStyle.Render("Latest Snapshots"))
	for _, s := range latest {
		count, _ := snaps.Count(s.EntryID)
		fmt.Printf("  %s %s\n", labelStyle.Render(s.EntryID+":"),
			valueStyle.Render(fmt.Sprintf("%d nodes, %d devices, %d clients, %d VLANs at %s (%d stored)",
				s.Nodes, s.Devices, s.Clients, s.VLANs,
				s.Timestamp.Local().Format("2006-01-02 15:04:05"), count)))
	}

	return nil
}
