package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	searchLimit     int
	searchThreshold float64
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Performs semantic search across all ingested documents.
Passages are ranked by cosine similarity to the query embedding; no
language model is involved.`,
	Args:        cobra.ExactArgs(1),
	Annotations: pipelineAnnotation,
	RunE:        runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	results, err := queryService.Retrieve(cmd.Context(), args[0], retrievalOptions(cmd, searchLimit, searchThreshold))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputJSON(cmd, results)
	}
	return outputResults(cmd, results)
}

func outputResults(cmd *cobra.Command, results []domain.ChunkWithSimilarity) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Print(renderSources(results, true))
	return nil
}
