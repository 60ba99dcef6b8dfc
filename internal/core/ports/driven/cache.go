package driven

// ResponseCache stores generated answers keyed by a query fingerprint.
// Implementations are safe for concurrent use and bound their size
// and entry lifetime.
type ResponseCache interface {
	// Get returns a cached answer.
	Get(key string) (string, bool)

	// Set stores an answer, evicting older entries when full.
	Set(key, value string)

	// Delete removes one entry.
	Delete(key string)

	// Len returns the number of live entries.
	Len() int

	// Clear removes every entry.
	Clear()
}
