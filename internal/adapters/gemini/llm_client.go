package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-email-classifier/internal/config"
	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiProvider is an implementation of the ModelProvider interface using Google Gemini
type GeminiProvider struct {
	client         *genai.Client
	initialModel   *genai.GenerativeModel
	escalatedModel *genai.GenerativeModel
	cfg            config.GeminiConfig
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
}

// classificationResponse represents the structured response from the LLM
type classificationResponse struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Keywords   []string `json:"keywords"`
}

const initialPromptFormat = `You are an expert email classifier. Analyze emails and classify them into exactly one category:

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
}

Classify this email:

Subject: %s
From: %s
Body: %s`

const escalatedPromptFormat = `You are an expert email classifier performing a SECOND analysis.

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
}

Re-analyze this email with more scrutiny:

Subject: %s
From: %s
Body: %s

Previous classification: %s (confidence: %.2f)
Previous reasoning: %s`

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(
	ctx context.Context,
	cfg config.GeminiConfig,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	initial := client.GenerativeModel(cfg.InitialModel)
	initial.SetTemperature(cfg.Temperature)
	initial.SetTopP(cfg.TopP)
	initial.SetMaxOutputTokens(int32(cfg.MaxTokens))

	escalated := client.GenerativeModel(cfg.EscalatedModel)
	escalated.SetTemperature(cfg.Temperature)
	escalated.SetTopP(cfg.TopP)
	escalated.SetMaxOutputTokens(int32(cfg.EscalatedMaxTokens))

	return &GeminiProvider{
		client:         client,
		initialModel:   initial,
		escalatedModel: escalated,
		cfg:            cfg,
		logger:         logger,
		textProcessor:  textProcessor,
	}, nil
}

// Close closes the Gemini client
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Classify analyzes an email and returns one classification attempt
func (p *GeminiProvider) Classify(ctx context.Context, req *core.ClassificationRequest) (*core.ClassificationAttempt, error) {
	model := p.initialModel
	modelName := p.cfg.InitialModel
	var prompt string

	if req.Mode == core.AttemptEscalated && req.Previous != nil {
		model = p.escalatedModel
		modelName = p.cfg.EscalatedModel
		prompt = fmt.Sprintf(escalatedPromptFormat,
			req.Input.Subject,
			req.Input.Sender,
			p.textProcessor.SanitizeUTF8(req.Input.Body),
			req.Previous.Category,
			req.Previous.Confidence,
			req.Previous.Reasoning)
	} else {
		prompt = fmt.Sprintf(initialPromptFormat,
			req.Input.Subject,
			req.Input.Sender,
			p.textProcessor.ProcessText(req.Input.Body, p.cfg.MaxBodySize))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("content generation timed out: %w", core.ErrProviderTimeout)
		}
		return nil, fmt.Errorf("failed to generate content: %v: %w", err, core.ErrProviderUnavailable)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini: %w", core.ErrProviderMalformedResponse)
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	return p.parseAttempt(responseText, req.Mode, modelName)
}

// parseAttempt parses the model's JSON output into a classification attempt
func (p *GeminiProvider) parseAttempt(text string, mode core.AttemptKind, model string) (*core.ClassificationAttempt, error) {
	content := utils.CleanJSONResponse(text)

	var parsed classificationResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
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
