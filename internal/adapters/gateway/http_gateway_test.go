package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/whitelist"
)

type stubProvider struct {
	attempt *core.ClassificationAttempt
	err     error
}

func (p *stubProvider) Classify(ctx context.Context, req *core.ClassificationRequest) (*core.ClassificationAttempt, error) {
	if p.err != nil {
		return nil, p.err
	}
	attempt := *p.attempt
	attempt.Kind = req.Mode
	return &attempt, nil
}

type nullCache struct{}

func (nullCache) Get(ctx context.Context, contentKey string) (*core.CacheEntry, error) {
	return nil, fmt.Errorf("not found")
}
func (nullCache) Set(ctx context.Context, entry *core.CacheEntry) error { return nil }
func (nullCache) Delete(ctx context.Context, contentKey string) error   { return nil }
func (nullCache) Cleanup(ctx context.Context) error                     { return nil }

func newTestGateway(provider core.ModelProvider, requestTimeout time.Duration) *HTTPGateway {
	logger := zap.NewNop()
	policy := core.NewConfidencePolicy(0.75, 0.50, 2)
	engine := core.NewWorkflowEngine(provider, policy, logger, time.Second, 0, time.Millisecond)
	checker := whitelist.NewChecker(nil, logger)
	service := core.NewClassificationService(engine, nullCache{}, checker, logger, false, 0)
	return NewHTTPGateway(service, logger, "127.0.0.1:0", requestTimeout)
}

func validBody() string {
	return `{"email_id": "e-1", "subject": "Hello", "body": "Hi there", "sender": "alice@example.com"}`
}

func TestHandleClassifySuccess(t *testing.T) {
	provider := &stubProvider{attempt: &core.ClassificationAttempt{
		Category:   core.CategorySpam,
		Confidence: 0.92,
		Reasoning:  "obvious spam markers",
		Keywords:   []string{"winner", "prize"},
		ModelUsed:  "stub",
		AnalyzedAt: time.Now(),
	}}
	g := newTestGateway(provider, 5*time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(validBody()))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp processingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.EmailID != "e-1" {
		t.Errorf("email_id = %q, want e-1", resp.EmailID)
	}
	if resp.Classification.Category != core.CategorySpam {
		t.Errorf("category = %q, want spam", resp.Classification.Category)
	}
	if resp.Decision != core.AcceptedHighConfidence {
		t.Errorf("decision = %q, want accepted_high_confidence", resp.Decision)
	}
	if len(resp.PathTaken) != 1 || resp.PathTaken[0] != core.AttemptInitial {
		t.Errorf("path_taken = %v, want [INITIAL]", resp.PathTaken)
	}
	if resp.ServiceVersion != ServiceVersion {
		t.Errorf("service_version = %q, want %q", resp.ServiceVersion, ServiceVersion)
	}
}

func TestHandleClassifyValidation(t *testing.T) {
	g := newTestGateway(&stubProvider{attempt: &core.ClassificationAttempt{Category: "spam", Confidence: 0.9}}, 5*time.Second)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing email_id", `{"subject": "s", "body": "b", "sender": "a@example.com"}`},
		{"missing subject", `{"email_id": "e", "body": "b", "sender": "a@example.com"}`},
		{"missing body", `{"email_id": "e", "subject": "s", "sender": "a@example.com"}`},
		{"malformed sender", `{"email_id": "e", "subject": "s", "body": "b", "sender": "not-an-address"}`},
		{"empty sender", `{"email_id": "e", "subject": "s", "body": "b", "sender": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			g.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestHandleClassifyMethodNotAllowed(t *testing.T) {
	g := newTestGateway(&stubProvider{attempt: &core.ClassificationAttempt{Category: "spam", Confidence: 0.9}}, 5*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classify", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleClassifyProviderFailure(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("model down: %w", core.ErrProviderUnavailable)}
	g := newTestGateway(provider, 5*time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(validBody()))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestHandleClassifyDeadlineExceeded(t *testing.T) {
	provider := &stubProvider{attempt: &core.ClassificationAttempt{Category: "spam", Confidence: 0.9}}
	g := newTestGateway(provider, time.Nanosecond)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(validBody()))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	g := newTestGateway(&stubProvider{attempt: &core.ClassificationAttempt{Category: "spam", Confidence: 0.9}}, 5*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status field = %q, want healthy", resp["status"])
	}
}
