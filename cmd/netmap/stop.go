package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/daemon"
	"github.com/user/netmap/internal/storage"
)

var stopWait time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the netmap daemon",
	Long:  "Unload every entry and stop the running netmap daemon. Reports the last snapshot saved for each unloaded entry.",
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().DurationVar(&stopWait, "wait", 30*time.Second, "How long to wait for the daemon to exit")
}

func runStop(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)
	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	var entries []daemon.EntryStatus
	if sf, err := daemon.ReadStatusFile(cfg.DataDir); err == nil {
		entries = sf.Entries
	}
	fmt.Printf("Stopping daemon (PID %d), %s\n", pid, unloadSummary(entries))

	if err := daemon.SendStop(cfg.DataDir); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		time.Sleep(time.Second)
		if running, _ := daemon.CheckRunning(cfg.DataDir); running {
			continue
		}
		fmt.Println("Daemon stopped")
		reportLastSnapshots(entries)
		return nil
	}

	fmt.Println("Warning: Daemon may not have stopped completely")
	return nil
}

// unloadSummary describes the entries a stop will unload.
func unloadSummary(entries []daemon.EntryStatus) string {
	if len(entries) == 0 {
		return "no entries loaded"
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		s := fmt.Sprintf("%s (%s, %d nodes)", e.ID, e.State, e.Nodes)
		if e.LastError != "" {
			s = fmt.Sprintf("%s (%s)", e.ID, e.LastError)
		}
		parts = append(parts, s)
	}
	noun := "entries"
	if len(entries) == 1 {
		noun = "entry"
	}
	return fmt.Sprintf("unloading %d %s: %s", len(entries), noun, strings.Join(parts, ", "))
}

func reportLastSnapshots(entries []daemon.EntryStatus) {
	if len(entries) == 0 {
		return
	}
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return
	}
	defer db.Close()

	latest, err := storage.NewSnapshotStorage(db).LatestPerEntry()
	if err != nil {
		return
	}
	saved := make(map[string]string, len(latest))
	for _, s := range latest {
		saved[s.EntryID] = s.Timestamp.Local().Format("2006-01-02 15:04:05")
	}
	for _, e := range entries {
		if ts, ok := saved[e.ID]; ok {
			fmt.Printf("  %s: last snapshot %s\n", e.ID, ts)
		} else {
			fmt.Printf("  %s: no snapshot saved\n", e.ID)
		}
	}
}
