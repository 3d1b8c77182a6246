// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"sync"

	"feedbackapp/internal/config"
	"feedbackapp/internal/database"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"
)

// Service names registered in the container
const (
	ServiceAI         = "ai"
	ServiceEnrichment = "enrichment"
	ServiceFeedback   = "feedback"
	ServiceGateway    = "gateway"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetAIService() (services.AIServiceInterface, error)
	GetEnrichmentService() (services.EnrichmentServiceInterface, error)
	GetFeedbackService() (services.FeedbackServiceInterface, error)
	GetGateway() (*database.Gateway, error)
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	metrics       *observability.FeedbackMetrics
	dbManager     *database.Manager
	gateway       *database.Gateway
	clock         *models.Clock
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		clock:    models.NewClock(nil),
		services: make(map[string]interface{}),
	}
}

// WithClock overrides the clock used to stamp new records
func (sc *ServiceContainer) WithClock(clock *models.Clock) *ServiceContainer {
	sc.clock = clock
	return sc
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.metrics = observability.DefaultFeedbackMetrics()

	// Initialize storage
	sc.dbManager = database.NewManager(sc.logger, sc.metrics)
	gateway, err := sc.dbManager.Open(ctx, sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize storage")
	}
	sc.gateway = gateway
	sc.services[ServiceGateway] = gateway
	sc.shutdownFuncs = append(sc.shutdownFuncs, sc.dbManager.Close)

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}

	sc.logger.Info(ctx, "Service container initialized", map[string]interface{}{
		"backend":    gateway.Backend(),
		"ai_enabled": sc.cfg.AI.Enabled(),
	})
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetAIService returns the AI service
func (sc *ServiceContainer) GetAIService() (services.AIServiceInterface, error) {
	return GetServiceAs[services.AIServiceInterface](sc, ServiceAI)
}

// GetEnrichmentService returns the enrichment service
func (sc *ServiceContainer) GetEnrichmentService() (services.EnrichmentServiceInterface, error) {
	return GetServiceAs[services.EnrichmentServiceInterface](sc, ServiceEnrichment)
}

// GetFeedbackService returns the feedback service
func (sc *ServiceContainer) GetFeedbackService() (services.FeedbackServiceInterface, error) {
	return GetServiceAs[services.FeedbackServiceInterface](sc, ServiceFeedback)
}

// GetGateway returns the persistence gateway
func (sc *ServiceContainer) GetGateway() (*database.Gateway, error) {
	return GetServiceAs[*database.Gateway](sc, ServiceGateway)
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs shutdown functions in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err)
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	// AI service degrades to disabled when no key is configured
	aiService := services.NewAIService(ctx, &sc.cfg.AI, sc.logger)
	sc.services[ServiceAI] = aiService
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(shutdownCtx context.Context) error {
		return aiService.Shutdown(shutdownCtx)
	})

	// Enrichment depends on the AI service
	enrichmentService, err := services.NewEnrichmentService(aiService, sc.logger, sc.metrics)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create enrichment service")
	}
	sc.services[ServiceEnrichment] = enrichmentService

	// Feedback service depends on enrichment and storage
	feedbackService := services.NewFeedbackService(enrichmentService, sc.gateway, sc.clock, sc.logger, sc.metrics)
	sc.services[ServiceFeedback] = feedbackService

	return nil
}
