package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the installer release, set at build time with
// -ldflags "-X honey-installer/cmd.Version=1.4.0".
var Version = "dev"

// exitCode is what the installer subcommand that ran asked to exit with.
var exitCode int

// rootCmd is the base command for the CLI tool `honey-installer`.
// Each integration is a subcommand; the root only carries --version.
var rootCmd = &cobra.Command{
	Use:          "honey-installer",
	Short:        "Set up honeytail to send your logs to Honeycomb",
	SilenceUsage: true,
}

// installerVersion is the version string shown by --version and sent in the
// User-Agent, e.g. "1.4.0-linux".
func installerVersion() string {
	return Version + "-" + runtime.GOOS
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	rootCmd.Version = installerVersion()
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error.
		return 1
	}
	return exitCode
}
