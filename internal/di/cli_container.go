package di

import (
	"flag"
	"strings"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-email-classifier/internal/adapters/cache"
	"github.com/mikey/llm-email-classifier/internal/config"
	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/factory"
	"github.com/mikey/llm-email-classifier/internal/logging"
	"github.com/mikey/llm-email-classifier/internal/utils"
	"github.com/mikey/llm-email-classifier/internal/whitelist"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider       string
	InitialModel   string
	EscalatedModel string
	MaxTokens      int
	Temperature    float64
	TopP           float64
	MaxBodySize    int

	// Bedrock flags
	BedrockRegion string

	// API keys
	GeminiAPIKey string
	OpenAIAPIKey string

	// Workflow flags
	HighThreshold float64
	LowThreshold  float64
	MaxDepth      int
	CallTimeout   string
	RetryBudget   int

	// Classification flags
	TrustedDomains string

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// LLM provider flags
	flag.StringVar(&flags.Provider, "provider", "openai", "LLM provider (openai, gemini, bedrock)")
	flag.StringVar(&flags.InitialModel, "initial-model", "", "Model for the first-pass classification (provider default if empty)")
	flag.StringVar(&flags.EscalatedModel, "escalated-model", "", "Model for escalated re-analysis (provider default if empty)")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for LLM response")
	flag.Float64Var(&flags.Temperature, "temperature", 0.0, "Temperature for LLM generation")
	flag.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for LLM generation")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 1000, "Maximum email body size to send on the first pass")

	// Bedrock flags
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")

	// API keys
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")

	// Workflow flags
	flag.Float64Var(&flags.HighThreshold, "high-threshold", 0.75, "High confidence threshold")
	flag.Float64Var(&flags.LowThreshold, "low-threshold", 0.50, "Low confidence threshold; below it the workflow escalates")
	flag.IntVar(&flags.MaxDepth, "max-depth", 2, "Maximum escalation depth")
	flag.StringVar(&flags.CallTimeout, "call-timeout", "10s", "Per-call provider timeout")
	flag.IntVar(&flags.RetryBudget, "retry-budget", 2, "Retries per provider call on transient failure")

	// Classification flags
	flag.StringVar(&flags.TrustedDomains, "trusted-domains", "", "Comma-separated list of trusted sender domains")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// NewConfigFromFlags creates a configuration from command line flags
func NewConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", flags.Provider)

	switch flags.Provider {
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		if flags.InitialModel != "" {
			v.Set("openai.initial_model", flags.InitialModel)
		}
		if flags.EscalatedModel != "" {
			v.Set("openai.escalated_model", flags.EscalatedModel)
		}
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		if flags.InitialModel != "" {
			v.Set("gemini.initial_model", flags.InitialModel)
		}
		if flags.EscalatedModel != "" {
			v.Set("gemini.escalated_model", flags.EscalatedModel)
		}
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		if flags.InitialModel != "" {
			v.Set("bedrock.initial_model_id", flags.InitialModel)
		}
		if flags.EscalatedModel != "" {
			v.Set("bedrock.escalated_model_id", flags.EscalatedModel)
		}
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	}

	v.Set("workflow.high_confidence_threshold", flags.HighThreshold)
	v.Set("workflow.low_confidence_threshold", flags.LowThreshold)
	v.Set("workflow.max_escalation_depth", flags.MaxDepth)
	v.Set("workflow.provider_call_timeout", flags.CallTimeout)
	v.Set("workflow.provider_retry_budget", flags.RetryBudget)

	if flags.TrustedDomains != "" {
		domains := strings.Split(flags.TrustedDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		v.Set("classifier.trusted_domains", domains)
	} else {
		v.Set("classifier.trusted_domains", []string{})
	}

	return config.NewFromViper(v)
}

// BuildCLIContainer creates a dependency injection container for the CLI.
// The CLI runs a single classification, so the result cache is disabled.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Configuration: file when given, flags otherwise
	if err := container.Provide(func(f *CLIFlags) (*config.Config, error) {
		if f.ConfigFile != "" {
			return config.New()
		}
		return NewConfigFromFlags(f), nil
	}); err != nil {
		return nil, err
	}

	// Console logger
	if err := container.Provide(func(f *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(f.Verbose, f.JSONLog)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.LLMFactory) (core.ModelProvider, error) {
		return f.CreateProvider()
	}); err != nil {
		return nil, err
	}

	// One-shot runs do not cache results
	if err := container.Provide(func(logger *zap.Logger) core.CacheRepository {
		return cache.NewMemoryCache(logger, time.Hour)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func() time.Duration { return 0 }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() bool { return false }); err != nil {
		return nil, err
	}

	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		return whitelist.NewChecker(cfg.GetStringSlice("classifier.trusted_domains"), logger)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(cfg *config.Config, provider core.ModelProvider, logger *zap.Logger) (*core.WorkflowEngine, error) {
		workflowCfg, err := cfg.GetWorkflow()
		if err != nil {
			return nil, err
		}
		policy := core.NewConfidencePolicy(
			workflowCfg.HighConfidenceThreshold,
			workflowCfg.LowConfidenceThreshold,
			workflowCfg.MaxEscalationDepth,
		)
		return core.NewWorkflowEngine(
			provider,
			policy,
			logger,
			workflowCfg.ProviderCallTimeout,
			workflowCfg.ProviderRetryBudget,
			workflowCfg.ProviderRetryBackoff,
		), nil
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(core.NewClassificationService); err != nil {
		return nil, err
	}

	return container, nil
}
