package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/llm-email-classifier/internal/config"
	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider is an implementation of the ModelProvider interface using OpenAI
type OpenAIProvider struct {
	client        *openai.Client
	cfg           config.OpenAIConfig
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// classificationResponse represents the structured response from the LLM
type classificationResponse struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Keywords   []string `json:"keywords"`
}

const initialSystemPrompt = `You are an expert email classifier. Analyze emails and classify them into exactly one category:

- spam: Unsolicited bulk mail, scams, unwanted solicitations
- phishing: Attempts to steal credentials or impersonate a trusted party
- promotional: Marketing, offers, newsletters from legitimate senders
- transactional: Receipts, confirmations, notifications tied to an action
- personal: Direct correspondence from an individual
- other: Anything that fits no category above

You MUST respond with valid JSON only, no additional text or explanation:
{
    "category": "spam" | "phishing" | "promotional" | "transactional" | "personal" | "other",
    "confidence": 0.0 to 1.0,
    "reasoning": "Brief explanation (1-2 sentences)",
    "keywords": ["key", "terms", "that", "influenced", "decision"]
}`

const escalatedSystemPrompt = `You are an expert email classifier performing a SECOND analysis.

The first classification was uncertain. Please carefully reconsider:

Categories:
- spam: Unsolicited bulk mail, scams, unwanted solicitations
- phishing: Attempts to steal credentials or impersonate a trusted party
- promotional: Marketing, offers, newsletters from legitimate senders
- transactional: Receipts, confirmations, notifications tied to an action
- personal: Direct correspondence from an individual
- other: Anything that fits no category above

Provide a more confident assessment. Consider:
1. Sender reputation indicators
2. Urgency keywords
3. Call-to-action presence
4. Professional vs promotional language

You MUST respond with valid JSON only:
{
    "category": "spam" | "phishing" | "promotional" | "transactional" | "personal" | "other",
    "confidence": 0.0 to 1.0,
    "reasoning": "Detailed explanation referencing specific indicators",
    "keywords": ["specific", "indicators", "found"]
}`

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(
	client *openai.Client,
	cfg config.OpenAIConfig,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIProvider {
	return &OpenAIProvider{
		client:        client,
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// buildPrompts returns the system and user prompts for a request. Escalated
// calls use the deeper-scrutiny prompt with the previous attempt's context
// and the untruncated body.
func (p *OpenAIProvider) buildPrompts(req *core.ClassificationRequest) (string, string) {
	if req.Mode == core.AttemptEscalated && req.Previous != nil {
		user := fmt.Sprintf(`Re-analyze this email with more scrutiny:

Subject: %s
From: %s
Body: %s

Previous classification: %s (confidence: %.2f)
Previous reasoning: %s`,
			req.Input.Subject,
			req.Input.Sender,
			p.textProcessor.SanitizeUTF8(req.Input.Body),
			req.Previous.Category,
			req.Previous.Confidence,
			req.Previous.Reasoning)
		return escalatedSystemPrompt, user
	}

	user := fmt.Sprintf(`Classify this email:

Subject: %s
From: %s
Body: %s`,
		req.Input.Subject,
		req.Input.Sender,
		p.textProcessor.ProcessText(req.Input.Body, p.cfg.MaxBodySize))
	return initialSystemPrompt, user
}

// Classify analyzes an email and returns one classification attempt
func (p *OpenAIProvider) Classify(ctx context.Context, req *core.ClassificationRequest) (*core.ClassificationAttempt, error) {
	model := p.cfg.InitialModel
	maxTokens := p.cfg.MaxTokens
	if req.Mode == core.AttemptEscalated {
		model = p.cfg.EscalatedModel
		maxTokens = p.cfg.EscalatedMaxTokens
	}

	systemPrompt, userPrompt := p.buildPrompts(req)

	oreq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: p.cfg.Temperature,
		TopP:        p.cfg.TopP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("chat completion timed out: %w", core.ErrProviderTimeout)
		}
		return nil, fmt.Errorf("failed to create chat completion: %v: %w", err, core.ErrProviderUnavailable)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI: %w", core.ErrProviderMalformedResponse)
	}

	return p.parseAttempt(resp.Choices[0].Message.Content, req.Mode, model)
}

// parseAttempt parses the model's JSON output into a classification attempt
func (p *OpenAIProvider) parseAttempt(text string, mode core.AttemptKind, model string) (*core.ClassificationAttempt, error) {
	content := utils.CleanJSONResponse(text)

	var parsed classificationResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// Try to extract a JSON object embedded in surrounding prose
		extracted, ok := utils.ExtractJSON(content)
		if !ok {
			return nil, fmt.Errorf("no JSON object in model output: %w", core.ErrProviderMalformedResponse)
		}
		if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse model output: %v: %w", err, core.ErrProviderMalformedResponse)
		}
	}

	if parsed.Category == "" {
		return nil, fmt.Errorf("model output missing category: %w", core.ErrProviderMalformedResponse)
	}

	confidence, anomalous := core.ClampConfidence(parsed.Confidence)
	if anomalous {
		p.logger.Warn("Provider returned out-of-range confidence",
			zap.Float64("confidence", parsed.Confidence),
			zap.String("model", model))
	}

	keywords := parsed.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	return &core.ClassificationAttempt{
		Category:   parsed.Category,
		Confidence: confidence,
		Reasoning:  parsed.Reasoning,
		Keywords:   keywords,
		Kind:       mode,
		Anomalous:  anomalous,
		ModelUsed:  model,
		AnalyzedAt: time.Now(),
	}, nil
}
