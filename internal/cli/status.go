package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics and the latest run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := setup(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		st, err := store.GetStatus(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Database:   %s (%.2f MB, schema %s)\n", cfg.Paths.Database, st.IndexSizeMB, st.SchemaVersion)
		fmt.Fprintf(w, "Chunks:     %d (%d embedded)\n", st.ChunksCount, st.EmbeddingsCount)
		fmt.Fprintf(w, "Packages:   %d\n", st.PackagesCount)
		fmt.Fprintf(w, "Types:      %d\n", st.TypesCount)
		fmt.Fprintf(w, "FTS index:  %v\n", st.Health.FTSIndexesBuilt)
		if run := st.LatestRun; run != nil {
			fmt.Fprintf(w, "Latest run: %s over %s at %s\n", run.ID, run.Root, run.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "            %d indexed, %d failed, %d files failed, cancelled=%v\n",
				run.ChunksIndexed, run.ChunksFailed, run.FilesFailed, run.Cancelled)
		} else {
			fmt.Fprintln(w, "Latest run: none")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
