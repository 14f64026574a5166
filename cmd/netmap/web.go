package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/daemon"
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the daemon with the HTTP API in the foreground",
	Long: `Run the daemon in the foreground and serve the HTTP API.

The API provides, per entry:
- GET  /api/unifi_network_map/{entry}/svg      rendered map, ?svg_theme=&icon_set=
- GET  /api/unifi_network_map/{entry}/payload  enriched JSON payload
- GET  /api/unifi_network_map/{entry}/status   refresh status
- GET  /api/unifi_network_map/{entry}/sensors  presence projections
- GET  /api/unifi_network_map/{entry}/ws       live payload subscription
- GET  /api/unifi_network_map/{entry}/history  refresh counts, ?since=24h
- GET  /api/unifi_network_map/{entry}/changes  nodes added and removed, ?since=24h
- GET  /api/unifi_network_map/{entry}/mermaid  live topology as Mermaid
- POST /api/unifi_network_map/refresh          ?entry_id= to refresh one entry

Examples:
  netmap web
  netmap web --listen 127.0.0.1:8099`,
	RunE: runWeb,
}

func init() {
	webCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	if running, pid := daemon.CheckRunning(cfg.DataDir); running {
		return fmt.Errorf("daemon is already running (PID %d); use 'netmap start --with-web'", pid)
	}
	return runForeground(true)
}
