package factory

import (
	"fmt"

	"github.com/mikey/llm-email-classifier/internal/adapters/gateway"
	"github.com/mikey/llm-email-classifier/internal/config"
	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/ports"
	"go.uber.org/zap"
)

// GatewayFactory creates request gateways based on configuration
type GatewayFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.ClassificationService
}

// NewGatewayFactory creates a new gateway factory
func NewGatewayFactory(cfg *config.Config, logger *zap.Logger, service *core.ClassificationService) *GatewayFactory {
	return &GatewayFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateRequestGateway creates a request gateway based on the configuration
func (f *GatewayFactory) CreateRequestGateway() (ports.RequestGateway, error) {
	workflowCfg, err := f.cfg.GetWorkflow()
	if err != nil {
		return nil, err
	}
	requestTimeout := workflowCfg.RequestDeadline()

	gatewayType := f.cfg.GetString("server.gateway_type")
	switch gatewayType {
	case "http":
		return gateway.NewHTTPGateway(
			f.service,
			f.logger,
			f.cfg.GetString("server.listen_address"),
			requestTimeout,
		), nil
	case "postfix":
		return gateway.NewSMTPGateway(
			f.service,
			f.logger,
			f.cfg.GetString("server.listen_address"),
			gateway.HeaderNames{
				Category:   f.cfg.GetString("server.headers.category"),
				Confidence: f.cfg.GetString("server.headers.confidence"),
				Decision:   f.cfg.GetString("server.headers.decision"),
				Reason:     f.cfg.GetString("server.headers.reason"),
			},
			f.cfg.GetString("server.postfix.address"),
			f.cfg.GetInt("server.postfix.port"),
			f.cfg.GetBool("server.postfix.enabled"),
			requestTimeout,
		), nil
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", gatewayType)
	}
}
