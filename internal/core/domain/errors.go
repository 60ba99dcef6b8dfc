package domain

import (
	"context"
	"errors"
	"net/http"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidFormat indicates the input is not a parseable PDF.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidArgument indicates an argument outside its accepted range,
	// such as a chunk size not larger than the chunk overlap.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProcessing indicates extraction or embedding failed mid-pipeline.
	ErrProcessing = errors.New("processing failed")

	// ErrExternalService indicates a call to a model provider failed.
	ErrExternalService = errors.New("external service error")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	// It is the only error the answer service retries.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates a provider call did not complete in time.
	ErrTimeout = errors.New("timed out")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)

// ErrorClass separates failures the caller can fix from failures of the system.
type ErrorClass string

const (
	// ErrorClassClient covers validation failures that are never retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer covers processing and provider failures.
	ErrorClassServer ErrorClass = "server"
)

// ClassOf returns the class of err. Nil errors have no class.
func ClassOf(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidFormat),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrAlreadyExists):
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// IsClientError reports whether err is a validation failure.
func IsClientError(err error) bool {
	return ClassOf(err) == ErrorClassClient
}

// StatusCode maps err to the HTTP status an API layer would return.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrExternalService),
		errors.Is(err, ErrLLMUnavailable),
		errors.Is(err, ErrEmbeddingUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
