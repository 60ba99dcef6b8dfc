package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

var documentCmd = &cobra.Command{
	Use:         "document",
	Short:       "Manage ingested documents",
	Long:        `List, inspect, reprocess or delete ingested documents.`,
	Annotations: pipelineAnnotation,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "Print the chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

var documentReprocessCmd = &cobra.Command{
	Use:   "reprocess [doc-id]",
	Short: "Re-chunk and re-embed a document",
	Long: `Runs the pipeline again on the stored PDF, replacing the document's
chunks and vectors. Use --chunk-size and --chunk-overlap to try
different chunking parameters.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentReprocess,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document, its chunks and vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var (
	reprocessChunkSize    int
	reprocessChunkOverlap int
	chunksFull            bool
)

func init() {
	documentReprocessCmd.Flags().IntVar(&reprocessChunkSize, "chunk-size", 0, "chunk size in characters (0 = configured default)")
	documentReprocessCmd.Flags().IntVar(&reprocessChunkOverlap, "chunk-overlap", 0, "chunk overlap in characters (0 = configured default)")
	documentChunksCmd.Flags().BoolVar(&chunksFull, "full", false, "print whole chunks instead of previews")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentChunksCmd)
	documentCmd.AddCommand(documentReprocessCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested.")
		return nil
	}

	cmd.Println(titleStyle.Render("Documents"))
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s  %s\n", docs[i].ID, statusStyle(docs[i].Status).Render(docs[i].Status.String()))
		cmd.Printf("    Title: %s\n", docs[i].DisplayTitle())
		cmd.Printf("    Added: %s\n", docs[i].CreatedAt.Format(timeLayout))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Filename: %s\n", doc.Filename)
	cmd.Printf("  Status:   %s\n", statusStyle(doc.Status).Render(doc.Status.String()))
	if doc.Error != "" {
		cmd.Printf("  Error:    %s\n", doc.Error)
	}
	cmd.Printf("  Stored:   %s\n", doc.StoragePath)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format(timeLayout))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format(timeLayout))

	meta := doc.Metadata
	cmd.Println("\n  Metadata:")
	if meta.Title != "" {
		cmd.Printf("    Title:  %s\n", meta.Title)
	}
	if meta.Author != "" {
		cmd.Printf("    Author: %s\n", meta.Author)
	}
	cmd.Printf("    Pages:  %d\n", meta.PageCount)
	cmd.Printf("    Size:   %d bytes\n", meta.FileSize)

	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	chunks, err := documentService.Chunks(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	if len(chunks) == 0 {
		cmd.Println("Document has no chunks.")
		return nil
	}

	for i := range chunks {
		cmd.Println(subtitleStyle.Render(fmt.Sprintf("Chunk %d", chunks[i].ChunkIndex)) +
			" " + mutedStyle.Render(fmt.Sprintf("(%d tokens)", chunks[i].TokenCount)))
		if chunksFull {
			cmd.Println(chunks[i].Content)
		} else {
			cmd.Println("  " + snippet(chunks[i].Content))
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d chunks\n", len(chunks))
	return nil
}

func runDocumentReprocess(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	opts := domain.ProcessOptions{ChunkSize: reprocessChunkSize, ChunkOverlap: reprocessChunkOverlap}
	result, err := documentService.Reprocess(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("failed to reprocess document: %w", err)
	}

	cmd.Printf("Reprocessed %s: %d chunks\n", args[0], len(result.Chunks))
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted document: %s\n", args[0])
	return nil
}
