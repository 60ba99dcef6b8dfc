package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Answers returned in place of a model response.
const (
	TimeoutFallback = "I'm sorry, but I couldn't generate a response in time. Please try again later."
	ErrorFallback   = "I'm sorry, but I encountered an error while generating a response. Please try again."
)

// contextSeparator joins chunks in the prompt context.
const contextSeparator = "\n\n"

// errAbandoned marks a shared generation stopped by its caller's context.
var errAbandoned = errors.New("generation abandoned")

// AnswerConfig holds the generation parameters.
type AnswerConfig struct {
	MaxTokens     int
	Temperature   float64
	ContextWindow int

	// Timeout bounds each model call. Zero disables the per-call bound.
	Timeout time.Duration

	// Retry governs retries of rate limited calls.
	Retry RetryPolicy
}

// AnswerConfigFromSettings builds an AnswerConfig from LLM settings.
func AnswerConfigFromSettings(llm domain.LLMSettings) AnswerConfig {
	return AnswerConfig{
		MaxTokens:     llm.MaxTokens,
		Temperature:   llm.Temperature,
		ContextWindow: llm.ContextWindow,
		Timeout:       llm.Timeout,
		Retry:         DefaultRetryPolicy(llm.MaxAttempts),
	}
}

// AnswerService generates grounded answers from retrieved chunks.
// Answers are cached by query and context, and concurrent requests for
// the same key share one model call. Model failures never surface to
// the caller; they turn into fallback answers that are not cached.
type AnswerService struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	counter driven.TokenCounter
	cache   driven.ResponseCache
	pool    *WorkerPool
	cfg     AnswerConfig
	group   singleflight.Group
}

// NewAnswerService creates an answer service. llm may be nil, in which
// case every answer is the error fallback.
func NewAnswerService(
	llm driven.LLMService,
	prompts driven.PromptStore,
	counter driven.TokenCounter,
	cache driven.ResponseCache,
	pool *WorkerPool,
	cfg AnswerConfig,
) *AnswerService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = domain.DefaultMaxTokens
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = domain.DefaultContextWindow
	}
	if pool == nil {
		pool = NewWorkerPool(domain.DefaultWorkers)
	}
	return &AnswerService{
		llm:     llm,
		prompts: prompts,
		counter: counter,
		cache:   cache,
		pool:    pool,
		cfg:     cfg,
	}
}

// Available reports whether a language model is configured.
func (s *AnswerService) Available() bool {
	return s.llm != nil
}

// CountTokens returns the number of tokens in text.
func (s *AnswerService) CountTokens(text string) int {
	return s.counter.Count(text)
}

// ContextBudget returns the tokens left for retrieved context once the
// answer, the prompts and the question are accounted for. Never negative.
func (s *AnswerService) ContextBudget(query string) (int, error) {
	system, user, err := s.templates()
	if err != nil {
		return 0, err
	}
	used := s.counter.Count(system) + s.counter.Count(fmt.Sprintf(user, "", query))
	return max(s.cfg.ContextWindow-s.cfg.MaxTokens-used, 0), nil
}

// PrepareContext joins chunk contents by descending similarity, stopping
// before the first chunk that would take the joined text over maxTokens.
func (s *AnswerService) PrepareContext(chunks []domain.ChunkWithSimilarity, maxTokens int) string {
	if maxTokens <= 0 || len(chunks) == 0 {
		return ""
	}

	ranked := make([]domain.ChunkWithSimilarity, len(chunks))
	copy(ranked, chunks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	var joined string
	for _, chunk := range ranked {
		candidate := chunk.Content
		if joined != "" {
			candidate = joined + contextSeparator + chunk.Content
		}
		if s.counter.Count(candidate) > maxTokens {
			break
		}
		joined = candidate
	}
	return joined
}

// FormatPrompt builds the chat messages for query, fitting as much of
// chunks as the context budget allows.
func (s *AnswerService) FormatPrompt(query string, chunks []domain.ChunkWithSimilarity) ([]driven.ChatMessage, error) {
	system, user, err := s.templates()
	if err != nil {
		return nil, err
	}
	budget, err := s.ContextBudget(query)
	if err != nil {
		return nil, err
	}
	excerpts := s.PrepareContext(chunks, budget)

	return []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: fmt.Sprintf(user, excerpts, query)},
	}, nil
}

// GenerateResponse answers query from chunks.
func (s *AnswerService) GenerateResponse(ctx context.Context, query string, chunks []domain.ChunkWithSimilarity) string {
	text, _ := s.respond(ctx, query, chunks)
	return text
}

// GenerateResponseAsync runs GenerateResponse on the worker pool.
func (s *AnswerService) GenerateResponseAsync(
	ctx context.Context,
	query string,
	chunks []domain.ChunkWithSimilarity,
) *Future[string] {
	return Submit(ctx, s.pool, func(ctx context.Context) (string, error) {
		return s.GenerateResponse(ctx, query, chunks), nil
	})
}

// CreateQueryResponse answers query and wraps the result with the chunks used.
func (s *AnswerService) CreateQueryResponse(
	ctx context.Context,
	query string,
	chunks []domain.ChunkWithSimilarity,
) *domain.QueryResponse {
	text, cached := s.respond(ctx, query, chunks)
	if chunks == nil {
		chunks = []domain.ChunkWithSimilarity{}
	}
	return &domain.QueryResponse{
		QueryID:           uuid.New().String(),
		QueryText:         query,
		ResponseText:      text,
		RelevantDocuments: chunks,
		Cached:            cached,
	}
}

// respond returns the answer text and whether it came from the cache.
func (s *AnswerService) respond(ctx context.Context, query string, chunks []domain.ChunkWithSimilarity) (string, bool) {
	key := CacheKey(query, chunks)
	if text, ok := s.cache.Get(key); ok {
		logger.Debug("answer: cache hit %s", key[:12])
		return text, true
	}

	for {
		ch := s.group.DoChan(key, func() (any, error) {
			if text, ok := s.cache.Get(key); ok {
				return text, nil
			}
			text, err := s.generate(ctx, query, chunks)
			if err != nil {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("%w: %w", errAbandoned, ctx.Err())
				}
				return nil, err
			}
			s.cache.Set(key, text)
			return text, nil
		})

		select {
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(string), false
			}
			// The caller that ran the shared call went away; a live caller
			// starts a fresh one instead of inheriting its cancellation.
			if errors.Is(res.Err, errAbandoned) && ctx.Err() == nil {
				logger.Debug("answer: shared generation abandoned, retrying %s", key[:12])
				continue
			}
			return fallback(res.Err), false
		case <-ctx.Done():
			return fallback(ctx.Err()), false
		}
	}
}

// generate calls the model, retrying rate limited attempts.
func (s *AnswerService) generate(ctx context.Context, query string, chunks []domain.ChunkWithSimilarity) (string, error) {
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}

	messages, err := s.FormatPrompt(query, chunks)
	if err != nil {
		return "", err
	}
	opts := driven.ChatOptions{MaxTokens: s.cfg.MaxTokens, Temperature: s.cfg.Temperature}

	var answer string
	err = s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		}
		defer cancel()

		text, err := s.llm.Chat(callCtx, messages, opts)
		if err != nil {
			if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
			}
			return err
		}
		answer = text
		return nil
	})
	if err != nil {
		logger.Warn("answer: generation failed: %v", err)
		return "", err
	}
	return answer, nil
}

func (s *AnswerService) templates() (system, user string, err error) {
	system, err = s.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return "", "", fmt.Errorf("load system prompt: %w", err)
	}
	user, err = s.prompts.Load(driven.PromptAnswerUser)
	if err != nil {
		return "", "", fmt.Errorf("load user prompt: %w", err)
	}
	return system, user, nil
}

// fallback maps a generation failure to the answer shown instead.
func fallback(err error) string {
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return TimeoutFallback
	}
	return ErrorFallback
}

// CacheKey fingerprints a query and the context it is answered from.
// Queries differing only in case or spacing share a key.
func CacheKey(query string, chunks []domain.ChunkWithSimilarity) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(strings.Fields(strings.ToLower(query)), " ")))
	for _, chunk := range chunks {
		h.Write([]byte{0})
		h.Write([]byte(chunk.ID))
		h.Write([]byte{0})
		h.Write([]byte(chunk.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}
