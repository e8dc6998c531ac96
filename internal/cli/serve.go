package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/javacontext/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		srv, err := mcp.NewServer(cfg, mcp.WithLogger(logger))
		if err != nil {
			return err
		}
		return srv.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
