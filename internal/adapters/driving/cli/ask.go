package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	askTopK      int
	askThreshold float64
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the ingested documents",
	Long: `Retrieves the passages most similar to the question and asks the
configured language model to answer from them.

Without a configured LLM the matching passages are shown instead.`,
	Args:        cobra.ExactArgs(1),
	Annotations: pipelineAnnotation,
	RunE:        runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (0 = configured default)")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", 0, "minimum similarity of retrieved passages")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	opts := retrievalOptions(cmd, askTopK, askThreshold)
	resp, err := queryService.Ask(cmd.Context(), args[0], opts)
	if errors.Is(err, domain.ErrLLMUnavailable) {
		cmd.PrintErrln("No language model configured; showing matching passages instead.")
		results, rerr := queryService.Retrieve(cmd.Context(), args[0], opts)
		if rerr != nil {
			return fmt.Errorf("search failed: %w", rerr)
		}
		if askJSON {
			return outputJSON(cmd, results)
		}
		return outputResults(cmd, results)
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputJSON(cmd, resp)
	}
	cmd.Print(renderAnswer(resp))
	return nil
}

// retrievalOptions builds options from flags, leaving the threshold to
// the configured default unless the flag was given.
func retrievalOptions(cmd *cobra.Command, topK int, threshold float64) domain.RetrievalOptions {
	opts := domain.RetrievalOptions{TopK: topK}
	if cmd.Flags().Changed("threshold") {
		opts.Threshold = &threshold
	}
	return opts
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
