package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/javacontext/internal/embedder"
	"github.com/dshills/javacontext/internal/searcher"
	"github.com/dshills/javacontext/internal/storage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed operations",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().IntP("limit", "n", searcher.DefaultLimit, "Max results")
	cmd.Flags().String("mode", "hybrid", "Search mode: hybrid, vector or keyword")
	cmd.Flags().StringSlice("package", nil, "Filter by package")
	cmd.Flags().StringSlice("type", nil, "Filter by declaring type")
	cmd.Flags().Bool("json", false, "Print results as JSON")
	rootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	modeName, _ := cmd.Flags().GetString("mode")
	packages, _ := cmd.Flags().GetStringSlice("package")
	typeNames, _ := cmd.Flags().GetStringSlice("type")
	asJSON, _ := cmd.Flags().GetBool("json")

	mode, err := searcher.ParseMode(modeName)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var emb embedder.Embedder
	if mode != searcher.SearchModeKeyword {
		emb, err = embedder.New(cfg.EmbedderConfig())
		if err != nil {
			return fmt.Errorf("embedder: %w", err)
		}
		defer func() { _ = emb.Close() }()
	}

	var filters *storage.SearchFilters
	if len(packages) > 0 || len(typeNames) > 0 {
		filters = &storage.SearchFilters{Packages: packages, TypeNames: typeNames}
	}

	s := searcher.NewSearcher(store, emb, searcher.WithLogger(logger))
	resp, err := s.Search(cmd.Context(), searcher.SearchRequest{
		Query:   strings.Join(args, " "),
		Limit:   limit,
		Mode:    mode,
		Filters: filters,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON {
		if len(resp.Results) == 0 {
			fmt.Fprintln(w, "[]")
			return nil
		}
		b, err := json.MarshalIndent(resp.Results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	for _, r := range resp.Results {
		fmt.Fprintf(w, "[%d] %s.%s.%s (%.4f)\n", r.Rank, r.Package, r.TypeName, r.OperationName, r.RelevanceScore)
		fmt.Fprintf(w, "    %s\n", r.Signature)
		if r.Summary != "" {
			fmt.Fprintf(w, "    %s\n", r.Summary)
		}
		if r.File != nil {
			fmt.Fprintf(w, "    %s:%d\n", r.File.Path, r.File.StartLine)
		}
	}
	fmt.Fprintf(w, "%d results (%s, %v)\n", resp.TotalResults, resp.SearchMode, resp.Duration)
	return nil
}
