package driven

// TokenCounter counts tokens with a model-specific scheme.
// Used for chunk statistics and LLM context budgets.
type TokenCounter interface {
	// Count returns the number of tokens in text. Count("") is 0.
	Count(text string) int

	// Name identifies the tokenization scheme.
	Name() string
}
