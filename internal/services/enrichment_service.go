package services

import (
	"context"
	"unicode/utf8"

	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"golang.org/x/sync/errgroup"
)

// Canned texts used when the provider is unavailable or returns too little
const (
	FallbackReply = "Thank you for your feedback! We appreciate your input."

	FallbackActionNegative = "Follow up with customer to address concerns"
	FallbackActionNeutral  = "Review feedback for improvement opportunities"
	FallbackActionPositive = "Thank customer and consider featuring positive feedback"
)

// Generated text is accepted only when longer than these many characters
const (
	minReplyLength   = 10
	minSummaryLength = 5
	minActionLength  = 10
)

// SummaryTruncateLength is the number of characters kept by TruncateReview
const SummaryTruncateLength = 100

// Enrichment field names, used in logs and metrics
const (
	FieldAIResponse        = "ai_response"
	FieldSummary           = "summary"
	FieldRecommendedAction = "recommended_action"
)

// EnrichmentServiceInterface defines the enrichment operations used by the ingestion pipeline
type EnrichmentServiceInterface interface {
	GenerateReply(ctx context.Context, rating int, review string) string
	GenerateSummary(ctx context.Context, review string) string
	GenerateRecommendedAction(ctx context.Context, rating int, review string) string
	Enrich(ctx context.Context, rating int, review string) models.Enrichment
}

// EnrichmentService derives the reply, summary and next step for a review.
// Every operation always returns text: provider failures are replaced by canned values.
type EnrichmentService struct {
	ai        AIServiceInterface
	templates *AITemplateManager
	logger    *observability.Logger
	metrics   *observability.FeedbackMetrics
}

// NewEnrichmentService creates a new enrichment service
func NewEnrichmentService(ai AIServiceInterface, logger *observability.Logger, metrics *observability.FeedbackMetrics) (*EnrichmentService, error) {
	templates, err := NewAITemplateManager()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load prompt templates")
	}
	if err := templates.MustHaveTemplates(ReplyPromptTemplate, SummaryPromptTemplate, RecommendedActionPromptTemplate); err != nil {
		return nil, contextutils.WrapError(err, "failed to load prompt templates")
	}
	if logger == nil {
		logger = observability.NewLogger(nil)
	}
	return &EnrichmentService{
		ai:        ai,
		templates: templates,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// GenerateReply produces a short customer-facing acknowledgement
func (s *EnrichmentService) GenerateReply(ctx context.Context, rating int, review string) string {
	ctx, span := observability.TraceEnrichmentFunction(ctx, "GenerateReply",
		observability.AttributeEnrichmentField(FieldAIResponse),
		observability.AttributeRating(rating),
	)
	defer span.End()

	prompt, err := s.templates.BuildReplyPrompt(rating, review)
	if err == nil {
		var text string
		text, err = s.generate(ctx, prompt)
		if err == nil && utf8.RuneCountInString(text) > minReplyLength {
			return text
		}
	}
	s.recordFallback(ctx, FieldAIResponse, err)
	return FallbackReply
}

// GenerateSummary produces a one-sentence internal summary of the review
func (s *EnrichmentService) GenerateSummary(ctx context.Context, review string) string {
	ctx, span := observability.TraceEnrichmentFunction(ctx, "GenerateSummary",
		observability.AttributeEnrichmentField(FieldSummary),
		observability.AttributeReviewLength(review),
	)
	defer span.End()

	prompt, err := s.templates.BuildSummaryPrompt(review)
	if err == nil {
		var text string
		text, err = s.generate(ctx, prompt)
		if err == nil && utf8.RuneCountInString(text) > minSummaryLength {
			return text
		}
	}
	s.recordFallback(ctx, FieldSummary, err)
	return TruncateReview(review)
}

// GenerateRecommendedAction produces one actionable next step for the business
func (s *EnrichmentService) GenerateRecommendedAction(ctx context.Context, rating int, review string) string {
	ctx, span := observability.TraceEnrichmentFunction(ctx, "GenerateRecommendedAction",
		observability.AttributeEnrichmentField(FieldRecommendedAction),
		observability.AttributeRating(rating),
	)
	defer span.End()

	prompt, err := s.templates.BuildRecommendedActionPrompt(rating, review)
	if err == nil {
		var text string
		text, err = s.generate(ctx, prompt)
		if err == nil && utf8.RuneCountInString(text) > minActionLength {
			return text
		}
	}
	s.recordFallback(ctx, FieldRecommendedAction, err)
	return FallbackAction(rating)
}

// Enrich runs the three generations concurrently and waits for all of them
func (s *EnrichmentService) Enrich(ctx context.Context, rating int, review string) models.Enrichment {
	ctx, span := observability.TraceEnrichmentFunction(ctx, "Enrich",
		observability.AttributeRating(rating),
		observability.AttributeReviewLength(review),
	)
	defer span.End()

	var out models.Enrichment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.AIResponse = s.GenerateReply(gctx, rating, review)
		return nil
	})
	g.Go(func() error {
		out.Summary = s.GenerateSummary(gctx, review)
		return nil
	})
	g.Go(func() error {
		out.RecommendedAction = s.GenerateRecommendedAction(gctx, rating, review)
		return nil
	})
	// The goroutines never return an error
	_ = g.Wait()

	return out
}

// generate calls the provider, treating a nil provider as unavailable
func (s *EnrichmentService) generate(ctx context.Context, prompt string) (string, error) {
	if s.ai == nil {
		return "", contextutils.ErrAIProviderUnavailable
	}
	return s.ai.Generate(ctx, prompt)
}

func (s *EnrichmentService) recordFallback(ctx context.Context, field string, err error) {
	fields := map[string]interface{}{
		"field": field,
	}
	switch {
	case err == nil:
		fields["reason"] = "response too short"
	case contextutils.IsError(err, contextutils.ErrAIProviderUnavailable):
		fields["reason"] = "provider unavailable"
	default:
		fields["reason"] = "generation failed"
		fields["error"] = err.Error()
	}
	s.logger.Warn(ctx, "Using fallback enrichment text", fields)
	s.metrics.RecordEnrichmentFallback(ctx, field)
}

// FallbackAction returns the canned next step for a rating
func FallbackAction(rating int) string {
	switch {
	case rating <= 2:
		return FallbackActionNegative
	case rating == 3:
		return FallbackActionNeutral
	default:
		return FallbackActionPositive
	}
}

// TruncateReview keeps the review when it is at most SummaryTruncateLength characters,
// otherwise its first SummaryTruncateLength characters followed by "...".
func TruncateReview(review string) string {
	if utf8.RuneCountInString(review) <= SummaryTruncateLength {
		return review
	}
	runes := []rune(review)
	return string(runes[:SummaryTruncateLength]) + "..."
}
