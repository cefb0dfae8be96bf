package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-email-classifier/internal/config"
	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/factory"
	"github.com/mikey/llm-email-classifier/internal/logging"
	"github.com/mikey/llm-email-classifier/internal/ports"
	"github.com/mikey/llm-email-classifier/internal/utils"
	"github.com/mikey/llm-email-classifier/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewGatewayFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register model provider
	if err := container.Provide(func(f *factory.LLMFactory) (core.ModelProvider, error) {
		return f.CreateProvider()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register cache TTL and enabled flag
	if err := container.Provide(func(f *factory.CacheFactory) (time.Duration, error) {
		return f.GetCacheTTL()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) bool {
		return f.IsCacheEnabled()
	}); err != nil {
		return nil, err
	}

	// Register trusted-domain checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		return whitelist.NewChecker(cfg.GetStringSlice("classifier.trusted_domains"), logger)
	}); err != nil {
		return nil, err
	}

	// Register workflow engine
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

	// Register classification service
	if err := container.Provide(core.NewClassificationService); err != nil {
		return nil, err
	}

	// Register request gateway
	if err := container.Provide(func(f *factory.GatewayFactory) (ports.RequestGateway, error) {
		return f.CreateRequestGateway()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
