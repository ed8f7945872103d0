package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the release version stamped at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pyre",
	Short: "Pyre is a secure data destruction service",
	Long: `A secure wipe-and-attest service: destroys file contents irrecoverably
with multi-pass overwrites, tracks every run as a session, and produces an
audit certificate and detailed log for each completed wipe.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
