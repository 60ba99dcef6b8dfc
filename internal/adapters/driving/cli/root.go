// Package cli implements the docqa command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services used by commands. Set by bootstrap or by SetServices.
var (
	documentService driving.DocumentService
	queryService    driving.QueryService
	settingsService driving.SettingsService
)

var (
	verboseFlag   bool
	configDirFlag string
)

// annotationPipeline marks commands that need the ingestion and query services.
const annotationPipeline = "docqa/pipeline"

// closeApp releases resources opened by bootstrap.
var closeApp func()

// bootstrapApp builds the services for commands that have none injected.
var bootstrapApp = bootstrap

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your PDF documents",
	Long: `docqa ingests PDF documents, indexes their text as embeddings and answers
natural-language questions from the most relevant passages.

Configuration lives in ~/.docqa/config.toml; API keys may also be supplied
through OPENAI_API_KEY and ANTHROPIC_API_KEY or a .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if closeApp != nil {
			closeApp()
			closeApp = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "print pipeline debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "configuration directory (default ~/.docqa)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Services groups the driving ports the commands call.
type Services struct {
	Document driving.DocumentService
	Query    driving.QueryService
	Settings driving.SettingsService
}

// SetServices injects services and disables bootstrap for set ports.
func SetServices(s Services) {
	documentService = s.Document
	queryService = s.Query
	settingsService = s.Settings
}

func persistentPreRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verboseFlag)

	pipeline := needsPipeline(cmd)
	if settingsService != nil && (!pipeline || documentService != nil) {
		return nil
	}
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	app, err := bootstrapApp(cmd.Context(), configDirFlag, pipeline)
	if err != nil {
		return err
	}
	closeApp = app.Close
	if settingsService == nil && app.settings != nil {
		settingsService = app.settings
	}
	if documentService == nil && app.documents != nil {
		documentService = app.documents
	}
	if queryService == nil && app.queries != nil {
		queryService = app.queries
	}
	return nil
}

// needsPipeline reports whether cmd or one of its parents is annotated
// as needing the pipeline services.
func needsPipeline(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationPipeline] == "true" {
			return true
		}
	}
	return false
}

var pipelineAnnotation = map[string]string{annotationPipeline: "true"}
