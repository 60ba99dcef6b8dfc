// Package hf counts tokens with a HuggingFace tokenizer.json.
package hf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// Counter counts token ids produced by a pretrained tokenizer,
// excluding special tokens.
type Counter struct {
	// The tokenizer keeps mutable state between calls.
	mu   sync.Mutex
	tk   *tokenizer.Tokenizer
	name string
}

// New loads the tokenizer at path. A directory is searched for tokenizer.json.
func New(path string) (*Counter, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: tokenizer %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat tokenizer: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, "tokenizer.json")
	}

	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}

	return &Counter{
		tk:   tk,
		name: "hf:" + filepath.Base(filepath.Dir(path)),
	}, nil
}

// Count returns the number of token ids in text. Encoding failures are
// logged and counted as zero.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	enc, err := c.tk.EncodeSingle(text, false)
	if err != nil {
		logger.Warn("tokenizer: encode failed: %v", err)
		return 0
	}
	return len(enc.Ids)
}

// Name identifies the tokenizer.
func (c *Counter) Name() string {
	return c.name
}
