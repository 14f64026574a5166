package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/storage"
	"github.com/user/netmap/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long: `Launch an interactive terminal dashboard over the recorded snapshots.

The dashboard shows:
- Each entry's latest node, link, device, client and VLAN counts
- Live entry state when the daemon is running
- VLAN and access point breakdowns of the selected entry

Use arrow keys to select an entry, 'r' to reload, 'q' to quit.`,
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	return tui.NewApp(db, cfg).Run()
}
