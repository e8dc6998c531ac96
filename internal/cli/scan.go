package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/javacontext/internal/hierarchy"
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "Map the type hierarchy of a Java tree",
		Long:  "Scan every .java file under root, record each declared type with its parent and public operations, and write the hierarchy artifact.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	cmd.Flags().StringP("output", "o", "", "Artifact path (default: [paths].hierarchy)")
	rootCmd.AddCommand(cmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = cfg.Paths.Hierarchy
	}

	m, stats, err := hierarchy.Scan(cmd.Context(), args[0],
		hierarchy.WithLogger(logger),
		hierarchy.WithWorkers(cfg.Ingestion.Workers),
		hierarchy.WithExcludeDirs(cfg.Ingestion.ExcludeDirs...))
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if err := hierarchy.Save(out, m); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scanned %d files in %v\n", stats.FilesScanned, stats.Duration)
	fmt.Fprintf(w, "Types mapped: %d\n", m.Len())
	if n := len(stats.FailedFiles); n > 0 {
		fmt.Fprintf(w, "Failed files: %d\n", n)
		for _, f := range stats.FailedFiles {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	fmt.Fprintf(w, "Hierarchy written to %s\n", out)
	return nil
}
