package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/daemon"
	"github.com/user/netmap/internal/util"
)

var (
	foreground bool
	withWeb    bool
	listenAddr string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the netmap daemon",
	Long:  "Start the netmap daemon in the background to poll the configured controllers.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false,
		"Run in foreground instead of daemonizing")
	startCmd.Flags().BoolVar(&withWeb, "with-web", false,
		"Also serve the HTTP API")
	startCmd.Flags().StringVar(&listenAddr, "listen", "",
		"Listen address for the HTTP API (default from config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)
	if running {
		fmt.Printf("Daemon is already running (PID %d)\n", pid)
		return nil
	}

	if foreground {
		return runForeground(withWeb)
	}

	return runDaemon()
}

func listen() string {
	if listenAddr != "" {
		return listenAddr
	}
	return cfg.Listen
}

func runForeground(serveWeb bool) error {
	fmt.Println("Starting netmap in foreground mode...")

	var opts []daemon.Option
	if serveWeb {
		opts = append(opts, daemon.WithWeb(listen()))
	}

	d, err := daemon.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if serveWeb {
		fmt.Printf("HTTP API: http://%s%s\n", apiHost(listen()), "/api/unifi_network_map")
	}
	fmt.Println("netmap daemon started. Press Ctrl+C to stop.")

	d.Wait()

	return nil
}

func runDaemon() error {
	// Re-execute self in background
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"start", "--foreground"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if withWeb {
		args = append(args, "--with-web", "--listen", listen())
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	procAttr := &os.ProcAttr{
		Dir:   "/",
		Env:   os.Environ(),
		Files: []*os.File{nil, logFile, logFile},
		Sys: &syscall.SysProcAttr{
			Setsid: true,
		},
	}

	proc, err := os.StartProcess(executable, append([]string{executable}, args...), procAttr)
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	if err := proc.Release(); err != nil {
		util.Warn("Failed to release process: %v", err)
	}

	fmt.Printf("netmap daemon started (PID %d)\n", proc.Pid)
	fmt.Printf("Logs: %s\n", cfg.LogFile)
	if withWeb {
		fmt.Printf("HTTP API: http://%s/api/unifi_network_map\n", apiHost(listen()))
	}

	return nil
}
