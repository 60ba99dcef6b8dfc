package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	ingestChunkSize    int
	ingestChunkOverlap int
	ingestParallel     int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.pdf]...",
	Short: "Ingest PDF documents",
	Long: `Extracts the text of each PDF, splits it into overlapping chunks,
embeds the chunks and adds them to the vector index.

Files that fail are reported and left in the error state; the remaining
files are still ingested.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: pipelineAnnotation,
	RunE:        runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "chunk size in characters (0 = configured default)")
	ingestCmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", 0, "chunk overlap in characters (0 = configured default)")
	ingestCmd.Flags().IntVarP(&ingestParallel, "parallel", "j", 2, "number of files ingested at once")
	rootCmd.AddCommand(ingestCmd)
}

type ingestOutcome struct {
	doc    *domain.Document
	result *domain.ProcessResult
	err    error
}

func runIngest(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := cmd.Context()
	opts := domain.ProcessOptions{ChunkSize: ingestChunkSize, ChunkOverlap: ingestChunkOverlap}
	outcomes := make([]ingestOutcome, len(args))

	var g errgroup.Group
	g.SetLimit(max(ingestParallel, 1))
	for i, path := range args {
		g.Go(func() error {
			doc, result, err := documentService.UploadFromPath(ctx, path, opts)
			outcomes[i] = ingestOutcome{doc: doc, result: result, err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, o := range outcomes {
		name := filepath.Base(args[i])
		if o.err != nil {
			failed++
			cmd.Printf("  %s %s: %v\n", statusStyle(domain.StatusError).Render("✗"), name, o.err)
			continue
		}
		cmd.Printf("  %s %s: %d chunks (%s)\n",
			statusStyle(domain.StatusAvailable).Render("✓"), name, len(o.result.Chunks), o.doc.ID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}
