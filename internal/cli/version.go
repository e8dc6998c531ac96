package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/javacontext/internal/storage"
)

// Set at build time with -ldflags "-X github.com/dshills/javacontext/internal/cli.version=..."
var (
	version   = "dev"
	buildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "javacontext version %s\n", version)
		fmt.Fprintf(w, "Build Time: %s\n", buildTime)
		fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
