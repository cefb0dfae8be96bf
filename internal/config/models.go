package config

import (
	"fmt"
	"time"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey             string
	InitialModel       string
	EscalatedModel     string
	MaxTokens          int
	EscalatedMaxTokens int
	Temperature        float32
	TopP               float32
	MaxBodySize        int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey             string
	InitialModel       string
	EscalatedModel     string
	MaxTokens          int
	EscalatedMaxTokens int
	Temperature        float32
	TopP               float32
	MaxBodySize        int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region             string
	InitialModelID     string
	EscalatedModelID   string
	MaxTokens          int
	EscalatedMaxTokens int
	Temperature        float32
	TopP               float32
	MaxBodySize        int
}

// WorkflowConfig represents the configuration surface of the workflow engine.
// These values are read once at startup and never mutated mid-request.
type WorkflowConfig struct {
	HighConfidenceThreshold float64
	LowConfidenceThreshold  float64
	MaxEscalationDepth      int
	ProviderCallTimeout     time.Duration
	ProviderRetryBudget     int
	ProviderRetryBackoff    time.Duration
	DeadlineHeadroom        time.Duration
}

// RequestDeadline is the overall per-request deadline the gateway enforces:
// every attempt's worst case plus headroom.
func (w WorkflowConfig) RequestDeadline() time.Duration {
	calls := time.Duration((w.MaxEscalationDepth + 1) * (w.ProviderRetryBudget + 1))
	return w.ProviderCallTimeout*calls + w.DeadlineHeadroom
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:             c.GetString("openai.api_key"),
		InitialModel:       c.GetString("openai.initial_model"),
		EscalatedModel:     c.GetString("openai.escalated_model"),
		MaxTokens:          c.GetInt("openai.max_tokens"),
		EscalatedMaxTokens: c.GetInt("openai.escalated_max_tokens"),
		Temperature:        float32(c.GetFloat64("openai.temperature")),
		TopP:               float32(c.GetFloat64("openai.top_p")),
		MaxBodySize:        c.GetInt("openai.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:             c.GetString("gemini.api_key"),
		InitialModel:       c.GetString("gemini.initial_model"),
		EscalatedModel:     c.GetString("gemini.escalated_model"),
		MaxTokens:          c.GetInt("gemini.max_tokens"),
		EscalatedMaxTokens: c.GetInt("gemini.escalated_max_tokens"),
		Temperature:        float32(c.GetFloat64("gemini.temperature")),
		TopP:               float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize:        c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:             c.GetString("bedrock.region"),
		InitialModelID:     c.GetString("bedrock.initial_model_id"),
		EscalatedModelID:   c.GetString("bedrock.escalated_model_id"),
		MaxTokens:          c.GetInt("bedrock.max_tokens"),
		EscalatedMaxTokens: c.GetInt("bedrock.escalated_max_tokens"),
		Temperature:        float32(c.GetFloat64("bedrock.temperature")),
		TopP:               float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize:        c.GetInt("bedrock.max_body_size"),
	}
}

// GetWorkflow returns the workflow engine configuration
func (c *Config) GetWorkflow() (WorkflowConfig, error) {
	callTimeout, err := c.GetDuration("workflow.provider_call_timeout")
	if err != nil {
		return WorkflowConfig{}, fmt.Errorf("invalid provider call timeout: %w", err)
	}
	retryBackoff, err := c.GetDuration("workflow.provider_retry_backoff")
	if err != nil {
		return WorkflowConfig{}, fmt.Errorf("invalid provider retry backoff: %w", err)
	}
	headroom, err := c.GetDuration("workflow.deadline_headroom")
	if err != nil {
		return WorkflowConfig{}, fmt.Errorf("invalid deadline headroom: %w", err)
	}

	cfg := WorkflowConfig{
		HighConfidenceThreshold: c.GetFloat64("workflow.high_confidence_threshold"),
		LowConfidenceThreshold:  c.GetFloat64("workflow.low_confidence_threshold"),
		MaxEscalationDepth:      c.GetInt("workflow.max_escalation_depth"),
		ProviderCallTimeout:     callTimeout,
		ProviderRetryBudget:     c.GetInt("workflow.provider_retry_budget"),
		ProviderRetryBackoff:    retryBackoff,
		DeadlineHeadroom:        headroom,
	}

	if cfg.LowConfidenceThreshold > cfg.HighConfidenceThreshold {
		return WorkflowConfig{}, fmt.Errorf("low confidence threshold %.2f exceeds high threshold %.2f",
			cfg.LowConfidenceThreshold, cfg.HighConfidenceThreshold)
	}
	if cfg.MaxEscalationDepth < 0 {
		return WorkflowConfig{}, fmt.Errorf("max escalation depth must be >= 0, got %d", cfg.MaxEscalationDepth)
	}

	return cfg, nil
}
