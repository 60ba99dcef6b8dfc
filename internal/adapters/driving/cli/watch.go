package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/connectors/filesystem"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

var (
	watchInitial  bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest PDFs as they appear in a folder",
	Long: `Watches a folder and ingests every PDF that is added or changed.
A changed file replaces the document ingested from it earlier in the
session and a removed file deletes it. Stop with Ctrl-C.`,
	Args:        cobra.ExactArgs(1),
	Annotations: pipelineAnnotation,
	RunE:        runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "ingest PDFs already in the folder before watching")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", filesystem.DefaultDebounce, "quiet period before a changed file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := filesystem.New(args[0], watchDebounce)
	defer watcher.Close()

	folder := &watchedFolder{documents: documentService, ids: make(map[string]string), cmd: cmd}

	if watchInitial {
		paths, err := watcher.Scan()
		if err != nil {
			return err
		}
		for _, path := range paths {
			folder.ingest(ctx, path)
		}
	}

	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Watching %s for PDF files (Ctrl-C to stop)\n", args[0])
	for change := range changes {
		folder.apply(ctx, change)
	}
	return nil
}

// watchedFolder maps watched files to the documents ingested from them.
type watchedFolder struct {
	documents driving.DocumentService
	ids       map[string]string
	cmd       *cobra.Command
}

func (f *watchedFolder) apply(ctx context.Context, change filesystem.Change) {
	switch change.Type {
	case filesystem.ChangeDeleted:
		f.remove(ctx, change.Path)
	case filesystem.ChangeCreated, filesystem.ChangeUpdated:
		f.remove(ctx, change.Path)
		f.ingest(ctx, change.Path)
	}
}

func (f *watchedFolder) ingest(ctx context.Context, path string) {
	name := filepath.Base(path)
	doc, result, err := f.documents.UploadFromPath(ctx, path, domain.ProcessOptions{})
	if doc != nil {
		f.ids[path] = doc.ID
	}
	if err != nil {
		f.cmd.Printf("  %s %s: %v\n", statusStyle(domain.StatusError).Render("✗"), name, err)
		return
	}
	f.cmd.Printf("  %s %s: %d chunks (%s)\n",
		statusStyle(domain.StatusAvailable).Render("✓"), name, len(result.Chunks), doc.ID)
}

func (f *watchedFolder) remove(ctx context.Context, path string) {
	id, ok := f.ids[path]
	if !ok {
		return
	}
	delete(f.ids, path)
	if err := f.documents.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		f.cmd.Printf("  failed to remove %s: %v\n", filepath.Base(path), err)
		return
	}
	f.cmd.Printf("  removed %s (%s)\n", filepath.Base(path), id)
}
