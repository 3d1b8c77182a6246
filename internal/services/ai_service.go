// Package services provides business logic services for the feedback application.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

// AIServiceInterface defines the interface for text generation used by the enrichment pipeline
type AIServiceInterface interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Enabled() bool
	GetConcurrencyStats() ConcurrencyStats
	Shutdown(ctx context.Context) error
}

// ContentGenerator performs one raw provider call and returns the provider's response value.
// The value is handed to ExtractResponseText, so any shape it understands is acceptable.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (interface{}, error)
}

// ConcurrencyStats provides metrics about AI request concurrency
type ConcurrencyStats struct {
	ActiveRequests int   `json:"active_requests"`
	MaxConcurrent  int   `json:"max_concurrent"`
	TotalRequests  int64 `json:"total_requests"`
	FailedRequests int64 `json:"failed_requests"`
}

// AIService calls the Gemini API with a bounded number of in-flight requests
type AIService struct {
	client    *genai.Client
	generator ContentGenerator
	model     string
	timeout   time.Duration
	logger    *observability.Logger

	// Concurrency control
	globalSemaphore chan struct{}
	maxConcurrent   int

	// Stats
	statsMu        sync.RWMutex
	activeRequests int
	totalRequests  int64
	failedRequests int64

	// Shutdown
	shutdownMu  sync.RWMutex
	shutdownCtx context.Context
	cancel      context.CancelFunc
}

// geminiGenerator adapts a genai model to ContentGenerator
type geminiGenerator struct {
	model *genai.GenerativeModel
}

func (g *geminiGenerator) GenerateContent(ctx context.Context, prompt string) (interface{}, error) {
	return g.model.GenerateContent(ctx, genai.Text(prompt))
}

// NewAIService creates a new AI service instance. A missing API key or a client that cannot
// be built leaves the service disabled: every Generate call then reports the provider as unavailable.
func NewAIService(ctx context.Context, cfg *config.AIConfig, logger *observability.Logger) *AIService {
	service := newAIService(cfg, logger)
	logger = service.logger

	if cfg == nil || !cfg.Enabled() {
		logger.Warn(ctx, "Gemini API key not set, AI enrichment disabled; canned responses will be used")
		return service
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		logger.Error(ctx, "Failed to create Gemini client, AI enrichment disabled", err, map[string]interface{}{
			"model": service.model,
		})
		return service
	}

	service.client = client
	service.generator = &geminiGenerator{model: client.GenerativeModel(service.model)}
	logger.Info(ctx, "Gemini client initialized", map[string]interface{}{
		"model":          service.model,
		"max_concurrent": service.maxConcurrent,
	})
	return service
}

// NewAIServiceWithGenerator creates an AI service backed by the given generator.
// A nil generator yields a disabled service.
func NewAIServiceWithGenerator(cfg *config.AIConfig, generator ContentGenerator, logger *observability.Logger) *AIService {
	service := newAIService(cfg, logger)
	service.generator = generator
	return service
}

func newAIService(cfg *config.AIConfig, logger *observability.Logger) *AIService {
	if cfg == nil {
		cfg = &config.AIConfig{}
	}
	if logger == nil {
		logger = observability.NewLogger(nil)
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultAIModel
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.AIRequestTimeout
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = config.DefaultAIMaxConcurrent
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	return &AIService{
		model:           model,
		timeout:         timeout,
		logger:          logger,
		globalSemaphore: make(chan struct{}, maxConcurrent),
		maxConcurrent:   maxConcurrent,
		shutdownCtx:     shutdownCtx,
		cancel:          cancel,
	}
}

// Enabled reports whether a provider is configured
func (s *AIService) Enabled() bool {
	return s.generator != nil
}

// Model returns the configured model name
func (s *AIService) Model() string {
	return s.model
}

// Generate sends prompt to the provider and returns its non-empty text.
// Every call is bounded by the configured request timeout.
func (s *AIService) Generate(ctx context.Context, prompt string) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "Generate",
		observability.AttributeModel(s.model),
		attribute.Int("ai.prompt_length", len(prompt)),
	)
	defer observability.FinishSpan(span, &err)

	if s.generator == nil {
		return "", contextutils.ErrAIProviderUnavailable
	}
	if s.isShutdown() {
		return "", contextutils.WrapError(contextutils.ErrAIProviderUnavailable, "AI service is shutting down")
	}

	// The deadline covers queueing for a slot as well as the provider call
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.acquireGlobalSlot(callCtx); err != nil {
		s.incrementFailedRequests()
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "waiting for AI slot: %v", err)
	}
	defer s.releaseGlobalSlot()

	start := time.Now()
	resp, err := s.generator.GenerateContent(callCtx, prompt)
	span.SetAttributes(attribute.Int64("ai.duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		s.incrementFailedRequests()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "AI request timed out after %s", s.timeout)
		}
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "AI request failed: %v", err)
	}

	text := strings.TrimSpace(ExtractResponseText(resp))
	if text == "" {
		s.incrementFailedRequests()
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "AI response contained no text")
	}

	span.SetAttributes(attribute.Int("ai.response_length", len(text)))
	return text, nil
}

// GetConcurrencyStats returns current concurrency statistics
func (s *AIService) GetConcurrencyStats() ConcurrencyStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	return ConcurrencyStats{
		ActiveRequests: s.activeRequests,
		MaxConcurrent:  s.maxConcurrent,
		TotalRequests:  s.totalRequests,
		FailedRequests: s.failedRequests,
	}
}

// Shutdown waits for in-flight requests and closes the Gemini client
func (s *AIService) Shutdown(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.cancel()
	s.shutdownMu.Unlock()

	timeout := config.AIShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	ticker := time.NewTicker(config.AIShutdownPollInterval)
	defer ticker.Stop()

	for i := 0; i < int(timeout/config.AIShutdownPollInterval); i++ {
		s.statsMu.RLock()
		active := s.activeRequests
		s.statsMu.RUnlock()

		if active == 0 {
			break
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn(ctx, "Error closing Gemini client", map[string]interface{}{"error": err.Error()})
		}
	}

	s.logger.Info(ctx, "AI Service shutdown completed")
	return nil
}

// isShutdown checks if the service is shutting down
func (s *AIService) isShutdown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	select {
	case <-s.shutdownCtx.Done():
		return true
	default:
		return false
	}
}

// acquireGlobalSlot blocks until a slot is free or ctx ends
func (s *AIService) acquireGlobalSlot(ctx context.Context) error {
	select {
	case s.globalSemaphore <- struct{}{}:
		s.statsMu.Lock()
		s.activeRequests++
		s.totalRequests++
		s.statsMu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AIService) releaseGlobalSlot() {
	<-s.globalSemaphore
	s.statsMu.Lock()
	s.activeRequests--
	s.statsMu.Unlock()
}

func (s *AIService) incrementFailedRequests() {
	s.statsMu.Lock()
	s.failedRequests++
	s.statsMu.Unlock()
}
