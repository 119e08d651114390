// Package commands implements the hlrgate CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hlrgate",
	Short: "SMPP HLR gateway",
	Long: `hlrgate terminates SMPP v3.4 connections and screens submitted
destinations against an HLR provider. Live numbers are rejected
synchronously; unreachable numbers are accepted and confirmed with a
DELIVRD delivery receipt on the same session.

Running hlrgate with no arguments starts the gateway (same as "hlrgate serve").

Use "hlrgate [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. With no arguments the serve command runs.
func Execute() error {
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"serve"})
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $XDG_CONFIG_HOME/hlrgate/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
