package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/javacontext/internal/embedder"
	"github.com/dshills/javacontext/internal/enricher"
	"github.com/dshills/javacontext/internal/hierarchy"
	"github.com/dshills/javacontext/internal/indexer"
	"github.com/dshills/javacontext/pkg/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest <root>",
		Short: "Enrich, embed and store every public operation under root",
		Long: "Run ingestion over a Java tree. With --hierarchy the saved artifact is used " +
			"(an unreadable artifact degrades to an empty map); without it the hierarchy is scanned first. " +
			"Ctrl-C stops the run after finished work is written.",
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}
	cmd.Flags().String("hierarchy", "", "Hierarchy artifact written by scan")
	cmd.Flags().Int("batch-size", 0, "Chunks per batch (default: [ingestion].batch_size)")
	cmd.Flags().Bool("mock", false, "Use the offline mock enricher")
	rootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	root := args[0]

	if mock, _ := cmd.Flags().GetBool("mock"); mock {
		cfg.Enrichment.Provider = enricher.ProviderMock
	}
	icfg := cfg.IndexerConfig()
	if n, _ := cmd.Flags().GetInt("batch-size"); n > 0 {
		icfg.BatchSize = n
	}

	var m *hierarchy.Map
	if path, _ := cmd.Flags().GetString("hierarchy"); path != "" {
		m = hierarchy.LoadOrEmpty(path, logger)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	defer func() { _ = emb.Close() }()

	enr, err := enricher.New(cfg.EnricherConfig())
	if err != nil {
		return fmt.Errorf("enricher: %w", err)
	}

	opts := []indexer.Option{indexer.WithLogger(logger)}
	failures, closer, err := indexer.OpenFailureLog(cfg.Paths.ErrorLog)
	if err != nil {
		logger.Warn("ingest.failure_log.unavailable", "path", cfg.Paths.ErrorLog, "err", err)
	} else {
		defer func() { _ = closer.Close() }()
		opts = append(opts, indexer.WithFailureLog(failures))
	}

	idx := indexer.New(store, enr, emb, opts...)
	summary, err := idx.Run(cmd.Context(), root, m, icfg)
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary, cfg.Paths.ErrorLog)
	}
	if err != nil {
		if errors.Is(err, indexer.ErrStorageUnavailable) {
			return fmt.Errorf("%w (database %s)", err, cfg.Paths.Database)
		}
		return err
	}
	return nil
}

func printSummary(w io.Writer, s *types.Summary, errorLog string) {
	fmt.Fprintf(w, "Run %s over %s\n", s.RunID, s.Root)
	fmt.Fprintf(w, "  Types mapped:     %d\n", s.TypesMapped)
	fmt.Fprintf(w, "  Files scanned:    %d (%d failed)\n", s.FilesScanned, s.FilesFailed)
	fmt.Fprintf(w, "  Chunks extracted: %d\n", s.ChunksExtracted)
	fmt.Fprintf(w, "  Chunks indexed:   %d\n", s.ChunksIndexed)
	fmt.Fprintf(w, "  Chunks failed:    %d (%d batches)\n", s.ChunksFailed, s.BatchesFailed)
	fmt.Fprintf(w, "  Duration:         %v\n", s.Duration)
	if s.Cancelled {
		fmt.Fprintln(w, "  Cancelled: finished work was saved")
	}
	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "  Errors (see %s):\n", errorLog)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
}
