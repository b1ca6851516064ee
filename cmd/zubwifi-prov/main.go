// Zubwifi-prov provisions zubwifi stations over their SoftAP session.
//
// It discovers provisioning sessions over mDNS, reads their status, sends
// a network credential and follows the session's event stream.
//
// Usage:
//
//	zubwifi-prov [command] [flags]
//
// See 'zubwifi-prov --help' for available commands.
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

var rootCmd = &cobra.Command{
	Use:   "zubwifi-prov",
	Short: "Provision zubwifi stations",
	Long: `A client for zubwifi SoftAP provisioning sessions.

Join the station's SoftAP (named <prefix><last three MAC bytes>), then
use 'provision' to hand it the network it should connect to.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Banner("zubwifi-prov"))
	},
}
