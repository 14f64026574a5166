package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/web"
)

var refreshEntry string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh entries on the running daemon",
	Long: `Ask the running daemon to refresh one or all entries now.

The daemon must serve the HTTP API (start --with-web or web).

Examples:
  netmap refresh
  netmap refresh --entry home`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshEntry, "entry", "", "Entry ID (default: all entries)")
	refreshCmd.Flags().StringVar(&listenAddr, "listen", "", "Daemon API address (default from config)")
}

// apiHost turns a listen address into a dialable host:port.
func apiHost(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	u := url.URL{Scheme: "http", Host: apiHost(listen()), Path: web.BasePath + "/refresh"}
	if refreshEntry != "" {
		u.RawQuery = url.Values{"entry_id": {refreshEntry}}.Encode()
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, u.String(), nil)
	if err != nil {
		return err
	}
	if cfg.Auth.Enabled() {
		token, err := web.IssueToken(cfg.Auth.JWTSecret, "cli", time.Minute)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon API unreachable at %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("refresh failed (%s): %s", resp.Status, body.Error)
	}

	var result web.RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	for _, id := range result.Refreshed {
		fmt.Printf("✓ %s refreshed\n", id)
	}
	ids := make([]string, 0, len(result.Errors))
	for id := range result.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("✗ %s: %s\n", id, result.Errors[id])
	}
	if len(ids) > 0 {
		return fmt.Errorf("%d of %d entries failed", len(ids), len(ids)+len(result.Refreshed))
	}
	return nil
}
