package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/netmap/internal/util"
)

var (
	cfgFile  string
	logLevel string
	cfg      *util.Config
)

// version is set at build time.
var version = "dev"

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "netmap",
	Short: "UniFi network map service",
	Long: `netmap polls UniFi controllers and keeps a rendered map of each network:
- SVG topology diagrams with per-request theme overrides
- Enriched JSON payloads linked to Home Assistant entities
- Device, client and VLAN presence projections
- Snapshot history with Markdown/Mermaid reports

It runs as a background daemon and serves an authenticated HTTP and websocket API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.netmap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)

	// Add shell completion
	rootCmd.AddCommand(completionCmd)
}

func initConfig() {
	var err error
	cfg, err = util.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	util.InitLogger(cfg.LogLevel, cfg.LogFile)
}

// selectEntries returns the configured entries, or only the one named id.
func selectEntries(id string) ([]util.EntryConfig, error) {
	if id == "" {
		if len(cfg.Entries) == 0 {
			return nil, fmt.Errorf("no entries configured")
		}
		return cfg.Entries, nil
	}
	for _, e := range cfg.Entries {
		if e.ID == id {
			return []util.EntryConfig{e}, nil
		}
	}
	return nil, fmt.Errorf("unknown entry_id: %s", id)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("netmap version " + version)
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for netmap.

To load completions:

Bash:
  $ source <(netmap completion bash)

Zsh:
  $ source <(netmap completion zsh)

Fish:
  $ netmap completion fish | source

PowerShell:
  PS> netmap completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
