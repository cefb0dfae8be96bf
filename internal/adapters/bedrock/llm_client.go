package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-email-classifier/internal/config"
	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/utils"
	"go.uber.org/zap"
)

// BedrockProvider is an implementation of the ModelProvider interface using Amazon Bedrock
type BedrockProvider struct {
	client        *bedrockruntime.Client
	cfg           config.BedrockConfig
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

// NewBedrockProvider creates a new Bedrock provider
func NewBedrockProvider(
	client *bedrockruntime.Client,
	cfg config.BedrockConfig,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockProvider {
	return &BedrockProvider{
		client:        client,
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Classify analyzes an email and returns one classification attempt
func (p *BedrockProvider) Classify(ctx context.Context, req *core.ClassificationRequest) (*core.ClassificationAttempt, error) {
	modelID := p.cfg.InitialModelID
	maxTokens := p.cfg.MaxTokens
	var prompt string

	if req.Mode == core.AttemptEscalated && req.Previous != nil {
		modelID = p.cfg.EscalatedModelID
		maxTokens = p.cfg.EscalatedMaxTokens
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

	// Request payload shape depends on the model family
	var payload []byte
	var err error

	if isAnthropicModel(modelID) {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt),
			"max_tokens_to_sample": maxTokens,
			"temperature":          p.cfg.Temperature,
			"top_p":                p.cfg.TopP,
		})
	} else if isAmazonTitanModel(modelID) {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": maxTokens,
				"temperature":   p.cfg.Temperature,
				"topP":          p.cfg.TopP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  maxTokens,
			"temperature": p.cfg.Temperature,
			"top_p":       p.cfg.TopP,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("model invocation timed out: %w", core.ErrProviderTimeout)
		}
		return nil, fmt.Errorf("failed to invoke Bedrock model: %v: %w", err, core.ErrProviderUnavailable)
	}

	responseText, err := extractResponseText(modelID, resp.Body)
	if err != nil {
		return nil, err
	}

	return p.parseAttempt(responseText, req.Mode, modelID)
}

// extractResponseText pulls the generated text out of the model-family
// specific response envelope
func extractResponseText(modelID string, body []byte) (string, error) {
	if isAnthropicModel(modelID) {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %v: %w", err, core.ErrProviderMalformedResponse)
		}
		return claudeResp.Completion, nil
	}

	if isAmazonTitanModel(modelID) {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %v: %w", err, core.ErrProviderMalformedResponse)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model: %w", core.ErrProviderMalformedResponse)
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %v: %w", err, core.ErrProviderMalformedResponse)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	}
	return string(body), nil
}

// parseAttempt parses the model's JSON output into a classification attempt
func (p *BedrockProvider) parseAttempt(text string, mode core.AttemptKind, model string) (*core.ClassificationAttempt, error) {
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

// isAnthropicModel checks if the model is an Anthropic Claude model
func isAnthropicModel(modelID string) bool {
	return strings.HasPrefix(modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func isAmazonTitanModel(modelID string) bool {
	return strings.HasPrefix(modelID, "amazon.titan")
}
