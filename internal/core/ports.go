package core

import (
	"context"
)

// ClassificationRequest describes one provider invocation. Previous carries
// the prior attempt on escalated calls so the provider can include its
// category, confidence and reasoning in the re-analysis prompt.
type ClassificationRequest struct {
	Input    *ClassificationInput
	Mode     AttemptKind
	Previous *ClassificationAttempt
}

// ModelProvider defines the interface for invoking the content-classification
// capability of a configured LLM backend. Implementations perform exactly one
// outbound call per invocation; retry and escalation are the caller's concern.
type ModelProvider interface {
	// Classify analyzes an email and returns one classification attempt
	Classify(ctx context.Context, req *ClassificationRequest) (*ClassificationAttempt, error)
}

// CacheRepository defines the interface for caching classification results
type CacheRepository interface {
	// Get retrieves a cached entry for a content key
	Get(ctx context.Context, contentKey string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, contentKey string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
