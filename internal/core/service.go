package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-email-classifier/internal/whitelist"
)

// ClassificationService fronts the workflow engine with the trusted-domain
// bypass and an optional short-lived result cache. The engine itself stays
// cache-free so every run is a pure function of its input and provider.
type ClassificationService struct {
	engine       *WorkflowEngine
	cache        CacheRepository
	trusted      *whitelist.Checker
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewClassificationService creates a new classification service
func NewClassificationService(
	engine *WorkflowEngine,
	cache CacheRepository,
	trusted *whitelist.Checker,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *ClassificationService {
	return &ClassificationService{
		engine:       engine,
		cache:        cache,
		trusted:      trusted,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
	}
}

// ContentKey derives the cache key for an input from its content, so
// identical emails share a cache entry regardless of their correlation id.
func ContentKey(input *ClassificationInput) string {
	h := sha256.New()
	h.Write([]byte(input.Sender))
	h.Write([]byte{0})
	h.Write([]byte(input.Subject))
	h.Write([]byte{0})
	h.Write([]byte(input.Body))
	return hex.EncodeToString(h.Sum(nil))
}

// Classify runs the workflow for one email
func (s *ClassificationService) Classify(ctx context.Context, input *ClassificationInput) (*ClassificationResult, error) {
	start := time.Now()

	// Trusted senders skip the model entirely
	if s.trusted.IsTrusted(input.Sender) {
		s.logger.Info("Skipping classification for trusted domain",
			zap.String("email_id", input.EmailID),
			zap.String("sender", input.Sender))
		return &ClassificationResult{
			EmailID:          input.EmailID,
			Category:         CategoryPersonal,
			Confidence:       1.0,
			Reasoning:        "Sender domain is trusted",
			Keywords:         []string{},
			PathTaken:        []AttemptKind{},
			ProcessingTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
			Decision:         AcceptedHighConfidence,
			ModelUsed:        "trusted-domains",
			AnalyzedAt:       time.Now(),
		}, nil
	}

	key := ContentKey(input)
	if s.cacheEnabled {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Cache hit", zap.String("email_id", input.EmailID))
			return &ClassificationResult{
				EmailID:          input.EmailID,
				Category:         entry.Category,
				Confidence:       entry.Confidence,
				Reasoning:        entry.Reasoning,
				Keywords:         entry.Keywords,
				PathTaken:        []AttemptKind{},
				ProcessingTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
				Decision:         entry.Decision,
				ModelUsed:        "cache",
				AnalyzedAt:       entry.LastSeen,
			}, nil
		}
	}

	result, err := s.engine.Run(ctx, input)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled {
		entry := &CacheEntry{
			ContentKey: key,
			Category:   result.Category,
			Confidence: result.Confidence,
			Reasoning:  result.Reasoning,
			Keywords:   result.Keywords,
			Decision:   result.Decision,
			LastSeen:   time.Now(),
			ExpiresAt:  time.Now().Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return result, nil
}
