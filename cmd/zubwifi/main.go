// Zubwifi is the device-side WiFi station connection manager.
//
// It keeps one station interface connected to a stored access point and
// falls back to a SoftAP provisioning session when no credential is stored
// or the stored one stops working. State changes are published on a local
// status server (HTTP, WebSocket and Prometheus metrics).
//
// Usage:
//
//	zubwifi [command] [flags]
//
// See 'zubwifi --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/zubwifi/internal/logging"
	"github.com/muurk/zubwifi/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "zubwifi",
	Short: "WiFi station connection manager",
	Long: `Keeps a WiFi station connected to its stored access point.

When no credential is stored, zubwifi opens a SoftAP provisioning session
named after the station MAC and waits for a client (such as zubwifi-prov)
to send one. Accepted credentials are saved and used on the next start.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/zubwifi/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Banner("zubwifi"))
	},
}
