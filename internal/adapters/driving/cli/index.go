package cli

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:         "index",
	Short:       "Inspect and manage the vector index",
	Annotations: pipelineAnnotation,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index statistics",
	Args:  cobra.NoArgs,
	RunE:  runIndexStats,
}

var indexSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist the vector index",
	Args:  cobra.NoArgs,
	RunE:  runIndexSave,
}

var indexClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every vector from the index",
	Long: `Removes every vector from the index and resets all documents to
pending. Run "docqa document reprocess" to index them again.`,
	Args: cobra.NoArgs,
	RunE: runIndexClear,
}

var indexClearYes bool

func init() {
	indexClearCmd.Flags().BoolVarP(&indexClearYes, "yes", "y", false, "do not ask for confirmation")

	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexSaveCmd)
	indexCmd.AddCommand(indexClearCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	stats, err := documentService.IndexStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get index stats: %w", err)
	}

	cmd.Println(titleStyle.Render("Vector Index"))
	cmd.Println()
	cmd.Printf("  Model:      %s\n", stats.Model)
	cmd.Printf("  Dimensions: %d\n", stats.Dimensions)
	cmd.Printf("  Vectors:    %d\n", stats.Vectors)
	cmd.Printf("  Documents:  %d (%d available)\n", stats.Documents, stats.Available)
	return nil
}

func runIndexSave(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.SaveIndex(cmd.Context()); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	cmd.Println("Index saved.")
	return nil
}

func runIndexClear(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if !indexClearYes {
		cmd.Print("Remove all vectors from the index? [y/N]: ")
		answer := readLine(bufio.NewReader(cmd.InOrStdin()))
		if answer != "y" && answer != "Y" && answer != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := documentService.ClearIndex(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	cmd.Println("Index cleared. Documents were reset to pending.")
	return nil
}
